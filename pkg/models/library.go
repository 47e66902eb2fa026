package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	LibraryTypeBook  = "book"
	LibraryTypeManga = "manga"
)

// LibraryMetadata configures which external catalog a library resolves
// metadata from.
type LibraryMetadata struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey,omitempty"`
}

type Library struct {
	bun.BaseModel `bun:"table:libraries,alias:l"`

	ID             int              `bun:",pk,autoincrement" json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Name           string           `bun:",nullzero" json:"name"`
	Path           string           `bun:",nullzero" json:"path"`
	Type           string           `bun:",nullzero" json:"type"`
	Metadata       string           `bun:",nullzero" json:"-"`
	MetadataParsed *LibraryMetadata `bun:"-" json:"metadata"`
}

func (l *Library) UnmarshalMetadata() error {
	l.MetadataParsed = &LibraryMetadata{}
	if l.Metadata == "" {
		return nil
	}
	err := json.Unmarshal([]byte(l.Metadata), l.MetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (l *Library) MarshalMetadata() error {
	if l.MetadataParsed == nil {
		return nil
	}
	data, err := json.Marshal(l.MetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	l.Metadata = string(data)
	return nil
}

// Provider returns the configured metadata provider, defaulting to
// MyAnimeList for manga libraries when unset.
func (l *Library) Provider() string {
	if l.MetadataParsed == nil || l.MetadataParsed.Provider == "" {
		if l.Type == LibraryTypeManga {
			return "myanimelist"
		}
		return ""
	}
	return l.MetadataParsed.Provider
}

func (l *Library) APIKey() string {
	if l.MetadataParsed == nil {
		return ""
	}
	return l.MetadataParsed.APIKey
}

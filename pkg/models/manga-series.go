package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type MangaSeries struct {
	bun.BaseModel `bun:"table:manga_series,alias:ms"`

	ID              int        `bun:",pk,autoincrement" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LibraryID       int        `bun:",nullzero" json:"library_id"`
	Title           string     `bun:",nullzero" json:"title"`
	Path            string     `bun:",nullzero" json:"path"`
	Cover           string     `json:"cover"`
	MangaData       string     `bun:",nullzero" json:"-"`
	MangaDataParsed *MangaData `bun:"-" json:"manga_data"`

	Files []*MangaFile `bun:"rel:has-many,join:id=series_id" json:"files,omitempty"`
}

func (s *MangaSeries) UnmarshalMangaData() error {
	s.MangaDataParsed = &MangaData{}
	if s.MangaData == "" {
		return nil
	}
	err := json.Unmarshal([]byte(s.MangaData), s.MangaDataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (s *MangaSeries) MarshalMangaData() error {
	if s.MangaDataParsed == nil {
		return nil
	}
	data, err := json.Marshal(s.MangaDataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	s.MangaData = string(data)
	return nil
}

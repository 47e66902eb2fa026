package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// Format is an alternate file representation of the same book (e.g. an
// .epub and a .mobi of one title).
type Format struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

type BookFile struct {
	bun.BaseModel `bun:"table:book_files,alias:bf"`

	ID             int           `bun:",pk,autoincrement" json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	LibraryID      int           `bun:",nullzero" json:"library_id"`
	Title          string        `bun:",nullzero" json:"title"`
	Path           string        `bun:",nullzero" json:"path"`
	FileName       string        `bun:",nullzero" json:"file_name"`
	FileFormat     string        `bun:",nullzero" json:"file_format"`
	TotalPages     int           `json:"total_pages"`
	CurrentPage    string        `bun:",nullzero,default:'0'" json:"current_page"`
	IsRead         bool          `json:"is_read"`
	Metadata       string        `bun:",nullzero" json:"-"`
	MetadataParsed *BookMetadata `bun:"-" json:"metadata"`
	Formats        string        `bun:",nullzero" json:"-"`
	FormatsParsed  []Format      `bun:"-" json:"formats"`
	Tags           string        `bun:",nullzero" json:"-"`
	TagsParsed     []string      `bun:"-" json:"tags"`
}

func (f *BookFile) UnmarshalPayloads() error {
	f.MetadataParsed = &BookMetadata{}
	f.FormatsParsed = []Format{}
	f.TagsParsed = []string{}

	if f.Metadata != "" {
		if err := json.Unmarshal([]byte(f.Metadata), f.MetadataParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if f.Formats != "" {
		if err := json.Unmarshal([]byte(f.Formats), &f.FormatsParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if f.Tags != "" {
		if err := json.Unmarshal([]byte(f.Tags), &f.TagsParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (f *BookFile) MarshalPayloads() error {
	if f.MetadataParsed != nil {
		data, err := json.Marshal(f.MetadataParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		f.Metadata = string(data)
	}
	if f.FormatsParsed != nil {
		data, err := json.Marshal(f.FormatsParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		f.Formats = string(data)
	}
	if f.TagsParsed != nil {
		data, err := json.Marshal(f.TagsParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		f.Tags = string(data)
	}
	return nil
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MangaFile struct {
	bun.BaseModel `bun:"table:manga_files,alias:mf"`

	ID          int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SeriesID    int       `bun:",nullzero" json:"series_id"`
	Path        string    `bun:",nullzero" json:"path"`
	FileName    string    `bun:",nullzero" json:"file_name"`
	FileFormat  string    `bun:",nullzero" json:"file_format"`
	Volume      int       `json:"volume"`
	Chapter     float64   `json:"chapter"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	IsRead      bool      `json:"is_read"`

	Series *MangaSeries `bun:"rel:belongs-to,join:series_id=id" json:"series,omitempty"`
}

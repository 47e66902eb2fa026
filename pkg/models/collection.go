package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// SharedUserID marks a collection as visible to all users.
const SharedUserID = 0

// Collection is a named grouping of entity ids. The members are book file
// ids for book libraries and series ids for manga libraries; a collection
// never mixes the two.
type Collection struct {
	bun.BaseModel `bun:"table:collections,alias:c"`

	ID           int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LibraryID    int       `bun:",nullzero" json:"library_id"`
	UserID       int       `json:"user_id"`
	Name         string    `bun:",nullzero" json:"name"`
	Series       string    `bun:",nullzero" json:"-"`
	SeriesParsed []int     `bun:"-" json:"series"`
}

func (c *Collection) UnmarshalSeries() error {
	c.SeriesParsed = []int{}
	if c.Series == "" {
		return nil
	}
	err := json.Unmarshal([]byte(c.Series), &c.SeriesParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (c *Collection) MarshalSeries() error {
	if c.SeriesParsed == nil {
		c.SeriesParsed = []int{}
	}
	data, err := json.Marshal(c.SeriesParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	c.Series = string(data)
	return nil
}

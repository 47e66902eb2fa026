// Package books persists book file records for book-type libraries.
package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveBookFileOptions struct {
	ID   *int
	Path *string
}

type ListBookFilesOptions struct {
	LibraryID *int
	Limit     *int
	Offset    *int
}

type UpdateBookFileOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBookFile(ctx context.Context, file *models.BookFile) error {
	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = file.CreatedAt
	if file.CurrentPage == "" {
		file.CurrentPage = "0"
	}

	if err := file.MarshalPayloads(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(file).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveBookFile(ctx context.Context, opts RetrieveBookFileOptions) (*models.BookFile, error) {
	file := &models.BookFile{}

	q := svc.db.
		NewSelect().
		Model(file)

	if opts.ID != nil {
		q = q.Where("id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	if err := file.UnmarshalPayloads(); err != nil {
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) ListBookFiles(ctx context.Context, opts ListBookFilesOptions) ([]*models.BookFile, error) {
	files := []*models.BookFile{}

	q := svc.db.
		NewSelect().
		Model(&files).
		Order("title ASC")

	if opts.LibraryID != nil {
		q = q.Where("library_id = ?", *opts.LibraryID)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, file := range files {
		if err := file.UnmarshalPayloads(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return files, nil
}

func (svc *Service) UpdateBookFile(ctx context.Context, file *models.BookFile, opts UpdateBookFileOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	file.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	if err := file.MarshalPayloads(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewUpdate().
		Model(file).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Book")
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) DeleteBookFile(ctx context.Context, file *models.BookFile) error {
	_, err := svc.db.
		NewDelete().
		Model(file).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// Package manga persists manga series and their archive file records.
package manga

import (
	"context"
	"database/sql"
	"time"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveSeriesOptions struct {
	ID        *int
	LibraryID *int
	Title     *string
	Path      *string

	IncludeFiles bool
}

type ListSeriesOptions struct {
	LibraryID *int
	Limit     *int
	Offset    *int
}

type UpdateSeriesOptions struct {
	Columns []string
}

type ListMangaFilesOptions struct {
	SeriesID *int
	Path     *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateSeries(ctx context.Context, series *models.MangaSeries) error {
	now := time.Now()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	series.UpdatedAt = series.CreatedAt

	if err := series.MarshalMangaData(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(series).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveSeries(ctx context.Context, opts RetrieveSeriesOptions) (*models.MangaSeries, error) {
	series := &models.MangaSeries{}

	q := svc.db.
		NewSelect().
		Model(series)

	if opts.IncludeFiles {
		q = q.Relation("Files", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("volume ASC", "chapter ASC", "file_name ASC")
		})
	}

	if opts.ID != nil {
		q = q.Where("ms.id = ?", *opts.ID)
	}
	if opts.LibraryID != nil {
		q = q.Where("ms.library_id = ?", *opts.LibraryID)
	}
	if opts.Title != nil {
		q = q.Where("ms.title = ?", *opts.Title)
	}
	if opts.Path != nil {
		q = q.Where("ms.path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Series")
		}
		return nil, errors.WithStack(err)
	}
	if err := series.UnmarshalMangaData(); err != nil {
		return nil, errors.WithStack(err)
	}

	return series, nil
}

func (svc *Service) ListSeries(ctx context.Context, opts ListSeriesOptions) ([]*models.MangaSeries, error) {
	series := []*models.MangaSeries{}

	q := svc.db.
		NewSelect().
		Model(&series).
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

	for _, s := range series {
		if err := s.UnmarshalMangaData(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return series, nil
}

func (svc *Service) UpdateSeries(ctx context.Context, series *models.MangaSeries, opts UpdateSeriesOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	series.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	if err := series.MarshalMangaData(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewUpdate().
		Model(series).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Series")
		}
		return errors.WithStack(err)
	}

	return nil
}

// DeleteSeries removes a series and all of its file records together.
func (svc *Service) DeleteSeries(ctx context.Context, series *models.MangaSeries) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.MangaFile)(nil)).
			Where("series_id = ?", series.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model(series).
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}

func (svc *Service) ListMangaFiles(ctx context.Context, opts ListMangaFilesOptions) ([]*models.MangaFile, error) {
	files := []*models.MangaFile{}

	q := svc.db.
		NewSelect().
		Model(&files).
		Order("volume ASC", "chapter ASC", "file_name ASC")

	if opts.SeriesID != nil {
		q = q.Where("series_id = ?", *opts.SeriesID)
	}
	if opts.Path != nil {
		q = q.Where("path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return files, nil
}

func (svc *Service) RetrieveMangaFile(ctx context.Context, path string) (*models.MangaFile, error) {
	file := &models.MangaFile{}

	err := svc.db.
		NewSelect().
		Model(file).
		Where("path = ?", path).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("File")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) RetrieveMangaFileByID(ctx context.Context, id int) (*models.MangaFile, error) {
	file := &models.MangaFile{}

	err := svc.db.
		NewSelect().
		Model(file).
		Where("mf.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("File")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) DeleteMangaFile(ctx context.Context, file *models.MangaFile) error {
	_, err := svc.db.
		NewDelete().
		Model(file).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// ReconcileMangaFiles applies a series' pending deletions and creations as
// one batch. Either all of them land or none do.
func (svc *Service) ReconcileMangaFiles(ctx context.Context, deleteIDs []int, creates []*models.MangaFile) error {
	if len(deleteIDs) == 0 && len(creates) == 0 {
		return nil
	}

	now := time.Now()
	for _, file := range creates {
		if file.CreatedAt.IsZero() {
			file.CreatedAt = now
		}
		file.UpdatedAt = file.CreatedAt
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(deleteIDs) > 0 {
			_, err := tx.
				NewDelete().
				Model((*models.MangaFile)(nil)).
				Where("id IN (?)", bun.In(deleteIDs)).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		if len(creates) > 0 {
			_, err := tx.
				NewInsert().
				Model(&creates).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	return errors.WithStack(err)
}

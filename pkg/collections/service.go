// Package collections groups book files into named collections. A
// collection with user id 0 is shared and visible to everyone.
package collections

import (
	"context"
	"database/sql"
	"time"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveCollectionOptions struct {
	ID        *int
	LibraryID *int
	UserID    *int
	Name      *string
}

type ListCollectionsOptions struct {
	LibraryID *int
	UserID    *int
	Limit     *int
	Offset    *int
}

type UpdateCollectionOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateCollection(ctx context.Context, collection *models.Collection) error {
	now := time.Now()
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = now
	}
	collection.UpdatedAt = collection.CreatedAt

	if err := collection.MarshalSeries(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(collection).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveCollection(ctx context.Context, opts RetrieveCollectionOptions) (*models.Collection, error) {
	collection := &models.Collection{}

	q := svc.db.
		NewSelect().
		Model(collection)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.LibraryID != nil {
		q = q.Where("c.library_id = ?", *opts.LibraryID)
	}
	if opts.UserID != nil {
		q = q.Where("c.user_id = ?", *opts.UserID)
	}
	if opts.Name != nil {
		q = q.Where("c.name = ?", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Collection")
		}
		return nil, errors.WithStack(err)
	}
	if err := collection.UnmarshalSeries(); err != nil {
		return nil, errors.WithStack(err)
	}

	return collection, nil
}

func (svc *Service) ListCollections(ctx context.Context, opts ListCollectionsOptions) ([]*models.Collection, error) {
	collections := []*models.Collection{}

	q := svc.db.
		NewSelect().
		Model(&collections).
		Order("name ASC")

	if opts.LibraryID != nil {
		q = q.Where("library_id = ?", *opts.LibraryID)
	}
	if opts.UserID != nil {
		// Shared collections are always included.
		q = q.Where("(user_id = ? OR user_id = ?)", *opts.UserID, models.SharedUserID)
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

	for _, collection := range collections {
		if err := collection.UnmarshalSeries(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return collections, nil
}

func (svc *Service) UpdateCollection(ctx context.Context, collection *models.Collection, opts UpdateCollectionOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	collection.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	if err := collection.MarshalSeries(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewUpdate().
		Model(collection).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Collection")
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) DeleteCollection(ctx context.Context, collection *models.Collection) error {
	_, err := svc.db.
		NewDelete().
		Model(collection).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// MergeMembers folds memberIDs into the shared collection named name in
// the given library, creating it when missing. Existing members are kept;
// the merge is a set union, so re-running it is a no-op.
func (svc *Service) MergeMembers(ctx context.Context, libraryID int, name string, memberIDs []int) (*models.Collection, error) {
	shared := models.SharedUserID
	collection, err := svc.RetrieveCollection(ctx, RetrieveCollectionOptions{
		LibraryID: &libraryID,
		UserID:    &shared,
		Name:      &name,
	})
	if err != nil {
		if !errors.Is(err, errcodes.NotFound("Collection")) {
			return nil, errors.WithStack(err)
		}

		collection = &models.Collection{
			LibraryID:    libraryID,
			UserID:       models.SharedUserID,
			Name:         name,
			SeriesParsed: memberIDs,
		}
		if err := svc.CreateCollection(ctx, collection); err != nil {
			return nil, errors.WithStack(err)
		}
		return collection, nil
	}

	seen := make(map[int]bool, len(collection.SeriesParsed))
	for _, id := range collection.SeriesParsed {
		seen[id] = true
	}
	changed := false
	for _, id := range memberIDs {
		if !seen[id] {
			collection.SeriesParsed = append(collection.SeriesParsed, id)
			seen[id] = true
			changed = true
		}
	}
	if !changed {
		return collection, nil
	}

	err = svc.UpdateCollection(ctx, collection, UpdateCollectionOptions{Columns: []string{"series"}})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return collection, nil
}

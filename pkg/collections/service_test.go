package collections

import (
	"context"
	"database/sql"
	"testing"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/migrations"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateAndRetrieveCollection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	collection := &models.Collection{
		LibraryID:    1,
		UserID:       models.SharedUserID,
		Name:         "Trilogy",
		SeriesParsed: []int{3, 1, 2},
	}
	require.NoError(t, svc.CreateCollection(ctx, collection))
	assert.NotZero(t, collection.ID)

	name := "Trilogy"
	libraryID := 1
	found, err := svc.RetrieveCollection(ctx, RetrieveCollectionOptions{LibraryID: &libraryID, Name: &name})
	require.NoError(t, err)
	// Member order is preserved, not sorted.
	assert.Equal(t, []int{3, 1, 2}, found.SeriesParsed)

	missing := "Nope"
	_, err = svc.RetrieveCollection(ctx, RetrieveCollectionOptions{Name: &missing})
	require.ErrorIs(t, err, errcodes.NotFound("Collection"))
}

func TestListCollections(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	for _, c := range []*models.Collection{
		{LibraryID: 1, UserID: models.SharedUserID, Name: "Shared"},
		{LibraryID: 1, UserID: 7, Name: "Mine"},
		{LibraryID: 1, UserID: 8, Name: "Theirs"},
	} {
		require.NoError(t, svc.CreateCollection(ctx, c))
	}

	userID := 7
	visible, err := svc.ListCollections(ctx, ListCollectionsOptions{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "Mine", visible[0].Name)
	assert.Equal(t, "Shared", visible[1].Name)
}

func TestUpdateCollection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	collection := &models.Collection{LibraryID: 1, UserID: models.SharedUserID, Name: "Picks", SeriesParsed: []int{1}}
	require.NoError(t, svc.CreateCollection(ctx, collection))

	collection.SeriesParsed = []int{1, 5}
	require.NoError(t, svc.UpdateCollection(ctx, collection, UpdateCollectionOptions{Columns: []string{"series"}}))

	found, err := svc.RetrieveCollection(ctx, RetrieveCollectionOptions{ID: &collection.ID})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, found.SeriesParsed)
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	collection := &models.Collection{LibraryID: 1, UserID: models.SharedUserID, Name: "Picks"}
	require.NoError(t, svc.CreateCollection(ctx, collection))
	require.NoError(t, svc.DeleteCollection(ctx, collection))

	_, err := svc.RetrieveCollection(ctx, RetrieveCollectionOptions{ID: &collection.ID})
	require.ErrorIs(t, err, errcodes.NotFound("Collection"))
}

func TestMergeMembers(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	t.Run("creates the collection when missing", func(t *testing.T) {
		collection, err := svc.MergeMembers(ctx, 1, "Omnibus", []int{10, 11})
		require.NoError(t, err)
		assert.NotZero(t, collection.ID)
		assert.Equal(t, models.SharedUserID, collection.UserID)
		assert.Equal(t, []int{10, 11}, collection.SeriesParsed)
	})

	t.Run("unions into the existing members", func(t *testing.T) {
		collection, err := svc.MergeMembers(ctx, 1, "Omnibus", []int{11, 12})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 11, 12}, collection.SeriesParsed)
	})

	t.Run("re-running is a no-op", func(t *testing.T) {
		collection, err := svc.MergeMembers(ctx, 1, "Omnibus", []int{10, 12})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 11, 12}, collection.SeriesParsed)

		found, err := svc.RetrieveCollection(ctx, RetrieveCollectionOptions{ID: &collection.ID})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 11, 12}, found.SeriesParsed)
	})
}

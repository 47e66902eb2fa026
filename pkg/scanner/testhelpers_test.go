package scanner

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/metadata"
	"github.com/devourer-reader/devourer/pkg/migrations"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
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

// newTestScanner points every external endpoint at a server that returns
// 404, so metadata resolution degrades to placeholder records.
func newTestScanner(t *testing.T, db *bun.DB) *Scanner {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg, err := config.New()
	require.NoError(t, err)
	cfg.GoogleBooksBaseURL = srv.URL
	cfg.OpenLibrarySearchBaseURL = srv.URL
	cfg.OpenLibraryCoversBaseURL = srv.URL
	cfg.PluginDir = t.TempDir()

	s := New(cfg, db, metadata.NewService(cfg, ratelimit.NewProviders()))
	s.SeriesCreateDelay = 0
	return s
}

func createTestLibrary(ctx context.Context, t *testing.T, db *bun.DB, libraryType string) *models.Library {
	t.Helper()

	library := &models.Library{
		Name: "Test Library",
		Path: t.TempDir(),
		Type: libraryType,
	}
	err := libraries.NewService(db).CreateLibrary(ctx, library)
	require.NoError(t, err)
	return library
}

// runScan starts a scan and blocks until it finishes, returning the final
// snapshot.
func runScan(ctx context.Context, t *testing.T, s *Scanner, libraryID int) Snapshot {
	t.Helper()

	_, err := s.Start(ctx, libraryID)
	require.NoError(t, err)

	return waitForFinish(t, s, libraryID)
}

func waitForFinish(t *testing.T, s *Scanner, libraryID int) Snapshot {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for {
		snapshot, ok := s.Status(libraryID)
		if ok && !snapshot.InProgress {
			return snapshot
		}
		require.True(t, time.Now().Before(deadline), "scan did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeCBZ(t *testing.T, path string, pages int) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := 0; i < pages; i++ {
		w, err := zw.Create(fmt.Sprintf("%03d.png", i+1))
		require.NoError(t, err)
		_, err = w.Write(pngBytes(t, 64, 96))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeBook(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("once upon a time"), 0o644))
	return path
}

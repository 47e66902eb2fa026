package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZip(t *testing.T) {
	t.Parallel()

	t.Run("counts image entries and returns the first page", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "series.cbz")
		writeZip(t, path, map[string][]byte{
			"002.jpg":       []byte("page two"),
			"001.jpg":       []byte("page one"),
			"003.png":       []byte("page three"),
			"ComicInfo.xml": []byte("<ComicInfo/>"),
			"notes.txt":     []byte("ignored"),
		})

		result := Extract(path)
		require.NoError(t, result.Err)
		assert.Equal(t, 3, result.PageCount)
		assert.Equal(t, []byte("page one"), result.FirstImage)
	})

	t.Run("archive with no images yields zero pages", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "empty.zip")
		writeZip(t, path, map[string][]byte{
			"readme.txt": []byte("nothing here"),
		})

		result := Extract(path)
		require.NoError(t, result.Err)
		assert.Equal(t, 0, result.PageCount)
		assert.Nil(t, result.FirstImage)
	})

	t.Run("corrupt archive reports the error in the result", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "corrupt.cbz")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

		result := Extract(path)
		assert.Error(t, result.Err)
		assert.Equal(t, 0, result.PageCount)
	})
}

func TestExtractUnsupportedFormat(t *testing.T) {
	t.Parallel()

	result := Extract(filepath.Join(t.TempDir(), "file.7z"))
	assert.EqualError(t, result.Err, "unsupported archive format: .7z")
}

func TestExtractMissingRar(t *testing.T) {
	t.Parallel()

	result := Extract(filepath.Join(t.TempDir(), "missing.cbr"))
	assert.Error(t, result.Err)
}

package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestConvertToWebP(t *testing.T) {
	t.Parallel()

	t.Run("converts and downscales to max width", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "covers", "cover.webp")

		err := ConvertToWebP(pngBytes(t, 1200, 1800), out, CoverMaxWidth, CoverQuality)
		require.NoError(t, err)

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		cfg, err := xwebp.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 600, cfg.Width)
		assert.Equal(t, 900, cfg.Height)
	})

	t.Run("never upscales narrow images", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "cover.webp")

		err := ConvertToWebP(pngBytes(t, 200, 300), out, CoverMaxWidth, CoverQuality)
		require.NoError(t, err)

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		cfg, err := xwebp.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Width)
	})

	t.Run("webp input is written through byte for byte", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		first := filepath.Join(dir, "cover.webp")
		second := filepath.Join(dir, "again.webp")

		require.NoError(t, ConvertToWebP(pngBytes(t, 800, 800), first, CoverMaxWidth, CoverQuality))

		firstBytes, err := os.ReadFile(first)
		require.NoError(t, err)
		require.True(t, IsWebP(firstBytes))

		// Feeding the produced file back in must not re-encode it.
		require.NoError(t, ConvertToWebP(firstBytes, second, CoverMaxWidth, CoverQuality))
		secondBytes, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, firstBytes, secondBytes)
	})

	t.Run("rejects undecodable input", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "cover.webp")
		assert.Error(t, ConvertToWebP([]byte("not an image"), out, CoverMaxWidth, CoverQuality))
	})
}

func TestSaveJPEGPreview(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "previews", "page.jpg")
	err := SaveJPEGPreview(pngBytes(t, 1024, 1536), out, PreviewMaxWidth, PreviewQuality)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 768, cfg.Height)
}

func TestDownloadToWebP(t *testing.T) {
	t.Parallel()

	t.Run("fetches and converts", func(t *testing.T) {
		t.Parallel()
		payload := pngBytes(t, 400, 600)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(payload)
		}))
		defer srv.Close()

		out := filepath.Join(t.TempDir(), "cover.webp")
		err := DownloadToWebP(context.Background(), srv.URL, out, CoverMaxWidth, CoverQuality)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, IsWebP(data))
	})

	t.Run("non-200 responses fail", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		out := filepath.Join(t.TempDir(), "cover.webp")
		err := DownloadToWebP(context.Background(), srv.URL, out, CoverMaxWidth, CoverQuality)
		assert.ErrorContains(t, err, "unexpected status 404")
	})
}

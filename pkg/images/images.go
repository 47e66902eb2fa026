// Package images produces the library's derived image assets: WebP covers
// and JPEG page previews.
package images

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/gen2brain/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	// CoverMaxWidth and CoverQuality are the defaults for WebP covers.
	CoverMaxWidth = 600
	CoverQuality  = 85

	// PreviewMaxWidth and PreviewQuality are the defaults for JPEG page
	// previews.
	PreviewMaxWidth = 512
	PreviewQuality  = 70
)

// IsWebP reports whether data already carries the RIFF/WEBP container
// signature.
func IsWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// ConvertToWebP writes data to outputPath as a WebP image no wider than
// maxWidth. Input that is already WebP is written through byte for byte, so
// converting an existing output file again is a no-op.
func ConvertToWebP(data []byte, outputPath string, maxWidth, quality int) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.WithStack(err)
	}

	if IsWebP(data) {
		return errors.WithStack(os.WriteFile(outputPath, data, 0o644))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return errors.WithStack(err)
	}
	img = scaleToWidth(img, maxWidth)

	f, err := os.Create(outputPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if err := webp.Encode(f, img, webp.Options{Quality: quality}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

// DownloadToWebP fetches url and converts the response body with
// ConvertToWebP.
func DownloadToWebP(ctx context.Context, url, outputPath string, maxWidth, quality int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading image %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}
	return ConvertToWebP(data, outputPath, maxWidth, quality)
}

// SaveJPEGPreview writes data to outputPath as a JPEG no wider than
// maxWidth.
func SaveJPEGPreview(data []byte, outputPath string, maxWidth, quality int) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.WithStack(err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return errors.WithStack(err)
	}
	img = scaleToWidth(img, maxWidth)

	f, err := os.Create(outputPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

// scaleToWidth downscales img to maxWidth preserving aspect ratio. Images
// already narrower are returned unchanged; nothing is ever upscaled.
func scaleToWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Package archive counts the pages of comic archives and pulls out their
// first image for preview generation. Zip-based archives (.cbz, .zip) and
// rar-based archives (.cbr, .rar) are supported.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
)

// Result carries the outcome of extracting one archive. A failed archive
// reports its error here so a batch caller can keep going.
type Result struct {
	PageCount  int
	FirstImage []byte
	Err        error
}

func isImageEntry(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// Extract opens the archive at path, counts its image entries in
// lexicographic order, and reads the first one. An archive with no images
// yields a zero-page Result without an error.
func Extract(path string) Result {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return extractZip(path)
	case ".cbr", ".rar":
		return extractRar(path)
	default:
		return Result{Err: errors.Errorf("unsupported archive format: %s", filepath.Ext(path))}
	}
}

func extractZip(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Err: errors.WithStack(err)}
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return Result{Err: errors.WithStack(err)}
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return Result{Err: errors.WithStack(err)}
	}

	var imageFiles []*zip.File
	for _, file := range zipReader.File {
		if isImageEntry(file.Name) {
			imageFiles = append(imageFiles, file)
		}
	}
	if len(imageFiles) == 0 {
		return Result{}
	}

	// Page order is the lexicographic order of entry names.
	sort.Slice(imageFiles, func(i, j int) bool {
		return imageFiles[i].Name < imageFiles[j].Name
	})

	r, err := imageFiles[0].Open()
	if err != nil {
		return Result{PageCount: len(imageFiles), Err: errors.WithStack(err)}
	}
	defer r.Close()

	first, err := io.ReadAll(r)
	if err != nil {
		return Result{PageCount: len(imageFiles), Err: errors.WithStack(err)}
	}

	return Result{PageCount: len(imageFiles), FirstImage: first}
}

func extractRar(path string) Result {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return Result{Err: errors.WithStack(err)}
	}
	defer r.Close()

	// Rar entries arrive in archive order, so track the lexicographically
	// smallest image seen and keep its bytes as we go.
	count := 0
	firstName := ""
	var first []byte
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{PageCount: count, Err: errors.WithStack(err)}
		}
		if hdr.IsDir || !isImageEntry(hdr.Name) {
			continue
		}
		count++
		if firstName == "" || hdr.Name < firstName {
			b, err := io.ReadAll(r)
			if err != nil {
				return Result{PageCount: count, Err: errors.WithStack(err)}
			}
			firstName = hdr.Name
			first = b
		}
	}
	if count == 0 {
		return Result{}
	}

	return Result{PageCount: count, FirstImage: first}
}

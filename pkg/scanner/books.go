package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devourer-reader/devourer/pkg/books"
	"github.com/devourer-reader/devourer/pkg/epub"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/images"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

func (s *Scanner) scanBookLibrary(ctx context.Context, library *models.Library, session *Session, folders []string) {
	log := logger.FromContext(ctx)

	for _, folder := range folders {
		entryPath := filepath.Join(library.Path, folder)
		fileIDs, err := s.scanBookEntry(ctx, library, session, folder, entryPath)
		if err != nil {
			log.Err(err).Error("book entry scan failed", logger.Data{"entry": folder})
			session.fail(folder, err.Error())
			continue
		}

		// Folders holding several books become a shared collection named
		// after the folder.
		if len(fileIDs) > 1 {
			if _, err := s.collectionService.MergeMembers(ctx, library.ID, folder, fileIDs); err != nil {
				log.Err(err).Warn("collection merge failed", logger.Data{"entry": folder})
			}
		}
		session.complete(folder)
	}

	if err := s.sweepBookOrphans(ctx, library); err != nil {
		log.Err(err).Warn("book orphan sweep failed")
	}
}

// scanBookEntry ingests one top-level library entry, either a standalone
// file or a folder of files, and returns the ids of every book file it
// now maps to.
func (s *Scanner) scanBookEntry(ctx context.Context, library *models.Library, session *Session, entry, entryPath string) ([]int, error) {
	info, err := os.Stat(entryPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var paths []string
	if info.IsDir() {
		all, err := listFilesRecursive(entryPath)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if IsValidBook(p) {
				paths = append(paths, p)
			}
		}
	} else if IsValidBook(entryPath) {
		paths = append(paths, entryPath)
	}

	ids := make([]int, 0, len(paths))
	for i, path := range paths {
		session.setProgress(entry, i+1, len(paths))

		file, err := s.bookService.RetrieveBookFile(ctx, books.RetrieveBookFileOptions{Path: &path})
		if err == nil {
			ids = append(ids, file.ID)
			continue
		}
		if !errcodes.IsNotFound(err) {
			return nil, err
		}

		file, err = s.IngestBookFile(ctx, library, path)
		if err != nil {
			return nil, err
		}
		ids = append(ids, file.ID)
	}
	return ids, nil
}

// IngestBookFile creates a book file record for a path that is not in the
// datastore yet, resolving metadata and producing its cover asset. The
// watcher uses this directly for single-file additions.
func (s *Scanner) IngestBookFile(ctx context.Context, library *models.Library, path string) (*models.BookFile, error) {
	log := logger.FromContext(ctx)
	fileName := filepath.Base(path)
	cleanName := CleanName(fileName)

	var epubMeta *epub.Metadata
	if strings.EqualFold(filepath.Ext(path), ".epub") {
		var err error
		epubMeta, err = epub.Parse(path)
		if err != nil {
			log.Err(err).Warn("epub parse failed", logger.Data{"path": path})
			epubMeta = nil
		}
	}

	title, isbn := cleanName, ""
	if epubMeta != nil {
		if epubMeta.Title != "" {
			title = epubMeta.Title
		}
		isbn = epubMeta.ISBN
	}
	record := s.metadataService.ResolveBook(ctx, title, isbn)
	if epubMeta != nil {
		em := epubMeta.EpubMetadata
		record.Epub = &em
	}

	displayTitle := record.Title
	if displayTitle == "" {
		displayTitle = cleanName
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	file := &models.BookFile{
		LibraryID:      library.ID,
		Title:          displayTitle,
		Path:           path,
		FileName:       fileName,
		FileFormat:     format,
		MetadataParsed: record,
		FormatsParsed: []models.Format{
			{Format: format, Name: fileName, Path: path},
		},
	}
	if err := s.bookService.CreateBookFile(ctx, file); err != nil {
		return nil, err
	}

	assetDir := BookAssetDir(library.Path, file.ID)
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := s.saveBookCover(ctx, file, epubMeta, record, assetDir); err != nil {
		log.Err(err).Warn("cover generation failed", logger.Data{"book_file_id": file.ID})
	}

	return file, nil
}

// saveBookCover writes cover.webp from the best available source: the
// epub's embedded JPEG, then the provider's cover URL, then an Open
// Library cover looked up by ISBN-13.
func (s *Scanner) saveBookCover(ctx context.Context, file *models.BookFile, epubMeta *epub.Metadata, record *models.BookMetadata, assetDir string) error {
	coverPath := filepath.Join(assetDir, "cover.webp")

	if epubMeta != nil && epubMeta.HasJPEGCover() {
		return images.ConvertToWebP(epubMeta.CoverData, coverPath, images.CoverMaxWidth, images.CoverQuality)
	}
	if len(record.Cover) > 10 {
		return images.DownloadToWebP(ctx, record.Cover, coverPath, images.CoverMaxWidth, images.CoverQuality)
	}
	if record.ISBN13 != "" {
		url := fmt.Sprintf("%s/b/isbn/%s-L.jpg", s.cfg.OpenLibraryCoversBaseURL, record.ISBN13)
		return images.DownloadToWebP(ctx, url, coverPath, images.CoverMaxWidth, images.CoverQuality)
	}
	return nil
}

// sweepBookOrphans deletes records and assets for book files whose paths
// no longer exist on disk.
func (s *Scanner) sweepBookOrphans(ctx context.Context, library *models.Library) error {
	log := logger.FromContext(ctx)
	files, err := s.bookService.ListBookFiles(ctx, books.ListBookFilesOptions{LibraryID: &library.ID})
	if err != nil {
		return err
	}

	for _, file := range files {
		if _, err := os.Stat(file.Path); err == nil {
			continue
		}
		if err := s.bookService.DeleteBookFile(ctx, file); err != nil {
			log.Err(err).Warn("orphan delete failed", logger.Data{"book_file_id": file.ID})
			continue
		}
		_ = os.RemoveAll(BookAssetDir(library.Path, file.ID))
		log.Info("removed orphaned book file", logger.Data{"path": file.Path})
	}
	return nil
}

func BookAssetDir(libraryPath string, fileID int) string {
	return filepath.Join(libraryPath, ".devourer", "files", strconv.Itoa(fileID))
}

func listFilesRecursive(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return paths, nil
}

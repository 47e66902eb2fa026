package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devourer-reader/devourer/pkg/archive"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/images"
	"github.com/devourer-reader/devourer/pkg/manga"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

func (s *Scanner) scanMangaLibrary(ctx context.Context, library *models.Library, session *Session, folders []string) {
	log := logger.FromContext(ctx)

	for _, folder := range folders {
		err := s.SyncSeries(ctx, library, folder, func(current, total int) {
			session.setProgress(folder, current, total)
		})
		if err != nil {
			log.Err(err).Error("series scan failed", logger.Data{"series": folder})
			session.fail(folder, err.Error())
			continue
		}
		session.complete(folder)
	}

	if err := s.sweepMangaOrphans(ctx, library); err != nil {
		log.Err(err).Warn("manga orphan sweep failed")
	}
}

// SyncSeries reconciles one series folder: it creates the series record on
// first sight (resolving metadata and fetching the cover) and then applies
// the file diff between disk and datastore in a single transaction. The
// progress callback may be nil.
func (s *Scanner) SyncSeries(ctx context.Context, library *models.Library, folder string, progress func(current, total int)) error {
	log := logger.FromContext(ctx)
	seriesPath := filepath.Join(library.Path, folder)

	series, err := s.mangaService.RetrieveSeries(ctx, manga.RetrieveSeriesOptions{
		LibraryID: &library.ID,
		Title:     &folder,
	})
	if errcodes.IsNotFound(err) {
		series, err = s.createSeries(ctx, library, folder, seriesPath)
	}
	if err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(seriesPath)
	if err != nil {
		return errors.WithStack(err)
	}
	currentPaths := map[string]bool{}
	var archivePaths []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !isArchive(entry.Name()) {
			continue
		}
		p := filepath.Join(seriesPath, entry.Name())
		currentPaths[p] = true
		archivePaths = append(archivePaths, p)
	}

	existing, err := s.mangaService.ListMangaFiles(ctx, manga.ListMangaFilesOptions{SeriesID: &series.ID})
	if err != nil {
		return err
	}
	existingByPath := make(map[string]*models.MangaFile, len(existing))
	for _, f := range existing {
		existingByPath[f.Path] = f
	}

	var deleteIDs []int
	for _, f := range existing {
		if !currentPaths[f.Path] {
			deleteIDs = append(deleteIDs, f.ID)
			_ = os.Remove(PreviewPath(library.Path, series.ID, f.FileName))
		}
	}

	var creates []*models.MangaFile
	for i, path := range archivePaths {
		if progress != nil {
			progress(i+1, len(archivePaths))
		}
		if existingByPath[path] != nil {
			continue
		}

		fileName := filepath.Base(path)
		result := archive.Extract(path)
		if result.Err != nil {
			log.Err(result.Err).Warn("archive extraction failed", logger.Data{"path": path})
		} else if len(result.FirstImage) > 0 {
			err := images.SaveJPEGPreview(result.FirstImage, PreviewPath(library.Path, series.ID, fileName), images.PreviewMaxWidth, images.PreviewQuality)
			if err != nil {
				log.Err(err).Warn("preview generation failed", logger.Data{"path": path})
			}
		}

		volume, chapter := ParseVolumeChapter(fileName)
		file := &models.MangaFile{
			SeriesID:   series.ID,
			Path:       path,
			FileName:   fileName,
			FileFormat: strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."),
			TotalPages: result.PageCount,
		}
		if volume != nil {
			file.Volume = *volume
		}
		if chapter != nil {
			file.Chapter = *chapter
		}
		creates = append(creates, file)
	}

	if len(deleteIDs) == 0 && len(creates) == 0 {
		return nil
	}
	return s.mangaService.ReconcileMangaFiles(ctx, deleteIDs, creates)
}

func (s *Scanner) createSeries(ctx context.Context, library *models.Library, folder, seriesPath string) (*models.MangaSeries, error) {
	log := logger.FromContext(ctx)

	data, err := s.metadataService.ResolveManga(ctx, library.Provider(), folder, library.APIKey())
	if err != nil {
		log.Err(err).Warn("series metadata resolution failed", logger.Data{"series": folder})
		data = nil
	}

	series := &models.MangaSeries{
		LibraryID:       library.ID,
		Title:           folder,
		Path:            seriesPath,
		MangaDataParsed: data,
	}
	if err := s.mangaService.CreateSeries(ctx, series); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(SeriesPreviewsDir(library.Path, series.ID), 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	if data != nil && data.CoverImage != "" {
		coverPath := filepath.Join(SeriesAssetDir(library.Path, series.ID), "cover.webp")
		if err := images.DownloadToWebP(ctx, data.CoverImage, coverPath, images.CoverMaxWidth, images.CoverQuality); err != nil {
			log.Err(err).Warn("series cover download failed", logger.Data{"series": folder})
		} else {
			series.Cover = coverPath
			if err := s.mangaService.UpdateSeries(ctx, series, manga.UpdateSeriesOptions{Columns: []string{"cover"}}); err != nil {
				return nil, err
			}
		}
	}

	// Space out provider traffic when many new series show up at once.
	time.Sleep(s.SeriesCreateDelay)

	return series, nil
}

// sweepMangaOrphans removes series whose folders disappeared, then files
// within surviving series whose archives disappeared.
func (s *Scanner) sweepMangaOrphans(ctx context.Context, library *models.Library) error {
	log := logger.FromContext(ctx)

	allSeries, err := s.mangaService.ListSeries(ctx, manga.ListSeriesOptions{LibraryID: &library.ID})
	if err != nil {
		return err
	}

	for _, series := range allSeries {
		if _, err := os.Stat(series.Path); err != nil {
			if err := s.mangaService.DeleteSeries(ctx, series); err != nil {
				log.Err(err).Warn("orphan series delete failed", logger.Data{"series_id": series.ID})
				continue
			}
			_ = os.RemoveAll(SeriesAssetDir(library.Path, series.ID))
			log.Info("removed orphaned series", logger.Data{"path": series.Path})
			continue
		}

		files, err := s.mangaService.ListMangaFiles(ctx, manga.ListMangaFilesOptions{SeriesID: &series.ID})
		if err != nil {
			return err
		}
		for _, file := range files {
			if _, err := os.Stat(file.Path); err == nil {
				continue
			}
			if err := s.mangaService.DeleteMangaFile(ctx, file); err != nil {
				log.Err(err).Warn("orphan file delete failed", logger.Data{"manga_file_id": file.ID})
				continue
			}
			_ = os.Remove(PreviewPath(library.Path, series.ID, file.FileName))
			log.Info("removed orphaned manga file", logger.Data{"path": file.Path})
		}
	}
	return nil
}

func SeriesAssetDir(libraryPath string, seriesID int) string {
	return filepath.Join(libraryPath, ".devourer", "series", strconv.Itoa(seriesID))
}

func SeriesPreviewsDir(libraryPath string, seriesID int) string {
	return filepath.Join(SeriesAssetDir(libraryPath, seriesID), "previews")
}

func PreviewPath(libraryPath string, seriesID int, fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return filepath.Join(SeriesPreviewsDir(libraryPath, seriesID), base+".jpg")
}

// Package watcher reacts to filesystem changes inside library roots,
// ingesting added files and reclaiming records for removed ones without a
// full rescan.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devourer-reader/devourer/pkg/books"
	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/manga"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/devourer-reader/devourer/pkg/scanner"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

const queueSize = 1024

// watchedExtensions restricts events to the file types libraries manage.
var watchedExtensions = map[string]bool{
	".cbz":  true,
	".zip":  true,
	".cbr":  true,
	".rar":  true,
	".pdf":  true,
	".epub": true,
}

type Watcher struct {
	cfg            *config.Config
	libraryService *libraries.Service
	bookService    *books.Service
	mangaService   *manga.Service
	scanner        *scanner.Scanner
	log            logger.Logger

	fsw     *fsnotify.Watcher
	adds    chan string
	unlinks chan string
	stop    chan struct{}
	wg      sync.WaitGroup

	// Events arriving before this instant are discarded; the initial
	// directory walk makes the watch library replay pre-existing files.
	armTime time.Time
}

func New(cfg *config.Config, db *bun.DB, sc *scanner.Scanner) *Watcher {
	return &Watcher{
		cfg:            cfg,
		libraryService: libraries.NewService(db),
		bookService:    books.NewService(db),
		mangaService:   manga.NewService(db),
		scanner:        sc,
		log:            logger.New(),
		adds:           make(chan string, queueSize),
		unlinks:        make(chan string, queueSize),
		stop:           make(chan struct{}),
	}
}

// Start watches every known library root recursively and begins draining
// add and unlink events, each through its own single worker.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	w.fsw = fsw

	libs, err := w.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		fsw.Close()
		return err
	}
	for _, library := range libs {
		if err := w.watchRecursive(library.Path); err != nil {
			w.log.Err(err).Warn("library root not watchable", logger.Data{"path": library.Path})
		}
	}

	w.armTime = time.Now().Add(w.cfg.WatcherGraceDelay)

	w.wg.Add(3)
	go w.eventLoop()
	go w.addWorker()
	go w.unlinkWorker()

	w.log.Info("watcher started", logger.Data{"libraries": len(libs)})
	return nil
}

// WatchLibrary adds a newly created library's root to the watch set.
func (w *Watcher) WatchLibrary(library *models.Library) error {
	return w.watchRecursive(library.Path)
}

func (w *Watcher) Stop() {
	close(w.stop)
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) watchRecursive(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".devourer" {
			return filepath.SkipDir
		}
		if d.IsDir() {
			if watchErr := w.fsw.Add(path); watchErr != nil {
				w.log.Err(watchErr).Warn("cannot watch directory", logger.Data{"path": path})
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Err(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchRecursive(event.Name)
		}
	}

	if time.Now().Before(w.armTime) {
		return
	}
	if strings.Contains(event.Name, string(filepath.Separator)+".devourer"+string(filepath.Separator)) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
			return
		}
		w.enqueue(w.adds, event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.enqueue(w.unlinks, event.Name)
	}
}

func (w *Watcher) enqueue(queue chan string, path string) {
	select {
	case queue <- path:
	default:
		w.log.Warn("event queue full, dropping event", logger.Data{"path": path})
	}
}

func (w *Watcher) addWorker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case path := <-w.adds:
			log := w.log.Root(logger.Data{"path": path})
			ctx := log.WithContext(context.Background())
			if err := w.handleAdd(ctx, path); err != nil {
				log.Err(err).Error("add event handling failed")
			}
		}
	}
}

func (w *Watcher) unlinkWorker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case path := <-w.unlinks:
			log := w.log.Root(logger.Data{"path": path})
			ctx := log.WithContext(context.Background())
			if err := w.handleUnlink(ctx, path); err != nil {
				log.Err(err).Error("unlink event handling failed")
			}
		}
	}
}

func (w *Watcher) handleAdd(ctx context.Context, path string) error {
	library, err := w.libraryForPath(ctx, path)
	if err != nil || library == nil {
		return err
	}

	if library.Type == models.LibraryTypeBook {
		if !scanner.IsValidBook(path) {
			return nil
		}
		_, err := w.bookService.RetrieveBookFile(ctx, books.RetrieveBookFileOptions{Path: &path})
		if err == nil {
			return nil
		}
		if !errcodes.IsNotFound(err) {
			return err
		}
		_, err = w.scanner.IngestBookFile(ctx, library, path)
		return err
	}

	// A file added inside a series folder re-syncs just that series.
	folder := topLevelFolder(library.Path, path)
	if folder == "" {
		return nil
	}
	return w.scanner.SyncSeries(ctx, library, folder, nil)
}

func (w *Watcher) handleUnlink(ctx context.Context, path string) error {
	library, err := w.libraryForPath(ctx, path)
	if err != nil || library == nil {
		return err
	}

	if library.Type == models.LibraryTypeBook {
		file, err := w.bookService.RetrieveBookFile(ctx, books.RetrieveBookFileOptions{Path: &path})
		if errcodes.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.bookService.DeleteBookFile(ctx, file); err != nil {
			return err
		}
		return errors.WithStack(os.RemoveAll(scanner.BookAssetDir(library.Path, file.ID)))
	}

	// A removed series folder cascades; a removed archive drops one record.
	series, err := w.mangaService.RetrieveSeries(ctx, manga.RetrieveSeriesOptions{Path: &path})
	if err == nil {
		if err := w.mangaService.DeleteSeries(ctx, series); err != nil {
			return err
		}
		return errors.WithStack(os.RemoveAll(scanner.SeriesAssetDir(library.Path, series.ID)))
	}
	if !errcodes.IsNotFound(err) {
		return err
	}

	file, err := w.mangaService.RetrieveMangaFile(ctx, path)
	if errcodes.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := w.mangaService.DeleteMangaFile(ctx, file); err != nil {
		return err
	}
	return errors.WithStack(os.Remove(scanner.PreviewPath(library.Path, file.SeriesID, file.FileName)))
}

// libraryForPath maps an absolute path back to its owning library by
// longest-prefix match.
func (w *Watcher) libraryForPath(ctx context.Context, path string) (*models.Library, error) {
	libs, err := w.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		return nil, err
	}

	var best *models.Library
	for _, library := range libs {
		prefix := strings.TrimSuffix(library.Path, string(filepath.Separator)) + string(filepath.Separator)
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if best == nil || len(library.Path) > len(best.Path) {
			best = library
		}
	}
	return best, nil
}

// topLevelFolder returns the first path component of path relative to
// root, or "" when the path sits directly in the root.
func topLevelFolder(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	// A ".." component means the path escapes the root entirely.
	if len(parts) < 2 || parts[0] == ".." {
		return ""
	}
	return parts[0]
}

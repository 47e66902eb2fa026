// Package scanner reconciles library directories with the datastore. One
// scan runs per library at a time; progress is tracked in per-library
// sessions owned by the Scanner and read through snapshots.
package scanner

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/devourer-reader/devourer/pkg/books"
	"github.com/devourer-reader/devourer/pkg/collections"
	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/manga"
	"github.com/devourer-reader/devourer/pkg/metadata"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type Scanner struct {
	cfg               *config.Config
	libraryService    *libraries.Service
	bookService       *books.Service
	mangaService      *manga.Service
	collectionService *collections.Service
	metadataService   *metadata.Service
	log               logger.Logger

	// SeriesCreateDelay spaces provider calls after creating a new series,
	// on top of the rate limiter's own pacing.
	SeriesCreateDelay time.Duration

	mu       sync.Mutex
	sessions map[int]*Session
}

func New(cfg *config.Config, db *bun.DB, metadataService *metadata.Service) *Scanner {
	return &Scanner{
		cfg:               cfg,
		libraryService:    libraries.NewService(db),
		bookService:       books.NewService(db),
		mangaService:      manga.NewService(db),
		collectionService: collections.NewService(db),
		metadataService:   metadataService,
		log:               logger.New(),
		SeriesCreateDelay: time.Second,
		sessions:          make(map[int]*Session),
	}
}

// StartResult is returned to the caller that triggered a scan; the scan
// itself continues in the background.
type StartResult struct {
	Message   string
	Remaining []string
}

// Start begins scanning the library's root. It fails synchronously when
// the library does not exist, its root is unreadable, or a scan is already
// in progress; every later failure is recorded on the session instead.
func (s *Scanner) Start(ctx context.Context, libraryID int) (*StartResult, error) {
	library, err := s.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{
		ID: &libraryID,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.mu.Lock()
	if session, ok := s.sessions[library.ID]; ok && session.snapshot().InProgress {
		s.mu.Unlock()
		return nil, errcodes.ScanInProgress()
	}

	dirEntries, err := os.ReadDir(library.Path)
	if err != nil {
		s.mu.Unlock()
		return nil, errors.WithStack(err)
	}
	folders := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.Name() == ".devourer" {
			continue
		}
		// Manga libraries are organized one folder per series; loose
		// files at the root are not part of any series.
		if library.Type == models.LibraryTypeManga && !entry.IsDir() {
			continue
		}
		folders = append(folders, entry.Name())
	}

	session := newSession(library.Type, folders)
	s.sessions[library.ID] = session
	s.mu.Unlock()

	go s.run(library, session, folders)

	return &StartResult{
		Message:   "Library scan started",
		Remaining: folders,
	}, nil
}

// StartScan adapts Start for callers that only need the trigger.
func (s *Scanner) StartScan(ctx context.Context, libraryID int) error {
	_, err := s.Start(ctx, libraryID)
	return err
}

// Status returns a snapshot of the library's scan session, or false when
// no scan has ever run for it.
func (s *Scanner) Status(libraryID int) (Snapshot, bool) {
	s.mu.Lock()
	session, ok := s.sessions[libraryID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return session.snapshot(), true
}

func (s *Scanner) run(library *models.Library, session *Session, folders []string) {
	log := s.log.Root(logger.Data{"library_id": library.ID, "library_type": library.Type})
	ctx := log.WithContext(context.Background())

	log.Info("scan started", logger.Data{"entries": len(folders)})
	start := time.Now()

	if library.Type == models.LibraryTypeBook {
		s.scanBookLibrary(ctx, library, session, folders)
	} else {
		s.scanMangaLibrary(ctx, library, session, folders)
	}

	session.finish()
	log.Info("scan completed", logger.Data{"duration": time.Since(start).String()})
}

package scanner

import (
	"sync"
	"time"
)

const (
	EntryStatusScanning = "scanning"
	EntryStatusComplete = "complete"
	EntryStatusError    = "error"
)

// Progress is the file-level progress within one entry.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Entry tracks one top-level library item through the scan.
type Entry struct {
	Series   string    `json:"series"`
	Status   string    `json:"status"`
	Progress *Progress `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Session is the live state of one library scan. All mutation goes through
// its methods under the lock; readers get value snapshots.
type Session struct {
	mu              sync.Mutex
	inProgress      bool
	libraryType     string
	startTime       time.Time
	completedSeries int
	totalSeries     int
	entries         []*Entry
}

func newSession(libraryType string, folders []string) *Session {
	entries := make([]*Entry, 0, len(folders))
	for _, folder := range folders {
		entries = append(entries, &Entry{
			Series: folder,
			Status: EntryStatusScanning,
		})
	}
	return &Session{
		inProgress:  true,
		libraryType: libraryType,
		startTime:   time.Now(),
		totalSeries: len(folders),
		entries:     entries,
	}
}

func (s *Session) entry(series string) *Entry {
	for _, e := range s.entries {
		if e.Series == series {
			return e
		}
	}
	return nil
}

func (s *Session) setProgress(series string, current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(series); e != nil {
		e.Progress = &Progress{Current: current, Total: total}
	}
}

func (s *Session) complete(series string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(series); e != nil {
		e.Status = EntryStatusComplete
	}
	s.completedSeries++
}

func (s *Session) fail(series, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(series); e != nil {
		e.Status = EntryStatusError
		e.Error = message
	}
	s.completedSeries++
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = false
}

// Snapshot is a point-in-time copy of a session, safe to hand to pollers.
type Snapshot struct {
	InProgress      bool
	LibraryType     string
	StartTime       time.Time
	CompletedSeries int
	TotalSeries     int
	Entries         []Entry
	Remaining       []string
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		InProgress:      s.inProgress,
		LibraryType:     s.libraryType,
		StartTime:       s.startTime,
		CompletedSeries: s.completedSeries,
		TotalSeries:     s.totalSeries,
		Entries:         make([]Entry, 0, len(s.entries)),
		Remaining:       []string{},
	}
	for _, e := range s.entries {
		copied := *e
		if e.Progress != nil {
			p := *e.Progress
			copied.Progress = &p
		}
		snap.Entries = append(snap.Entries, copied)
		if e.Status == EntryStatusScanning {
			snap.Remaining = append(snap.Remaining, e.Series)
		}
	}
	return snap
}

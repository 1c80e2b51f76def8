// Package session holds the process-wide state a single sentinelnav run
// shares between the scan driver and the HTTP handlers: the current file
// path, its Configuration, and the record Store.
//
// The original implementation this module is descended from keeps this
// triple as module-level globals (SERVER_FILE_PATH, SERVER_CONFIG, ENGINE).
// Here it is an explicit value, passed to handlers by argument, guarded by
// a single-writer/multi-reader lock: do not read its exported accessors'
// results across a call that might mutate them without re-reading.
package session

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustedkoi/sentinelnav/internal/analyzer"
	"github.com/rustedkoi/sentinelnav/internal/chunk"
	"github.com/rustedkoi/sentinelnav/internal/config"
	"github.com/rustedkoi/sentinelnav/internal/store"
)

// Session is the tuple of file path, configuration and store that defines
// one analysis run. It is mutated only by Load, which serializes against
// itself and takes exclusive access before resetting the store and
// rescanning.
type Session struct {
	mu     sync.RWMutex
	path   string
	config config.Configuration
	store  *store.Store
	genID  string

	log *logrus.Logger
}

// New builds a Session and runs the initial scan over path, per spec.md
// §4.8: "Initialized before the server starts listening."
func New(ctx context.Context, path string, cfg config.Configuration, log *logrus.Logger) (*Session, error) {
	st, err := store.Open()
	if err != nil {
		return nil, errors.Wrap(err, "session: open store")
	}

	s := &Session{path: path, config: cfg, store: st, log: log}
	if err := s.scanLocked(ctx, path); err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}

// Snapshot is a consistent, point-in-time read of the session's state,
// returned by Current so that callers don't hold the lock across the rest
// of a request.
type Snapshot struct {
	Path   string
	Config config.Configuration
	Store  *store.Store
	GenID  string
}

// Current returns a snapshot of the session's state. Concurrent with a
// Load, this may observe the pre- or post-scan snapshot, never a partially
// scanned one: the read completes entirely inside the RLock below, and Load
// does not release its Lock until the new store is fully populated.
func (s *Session) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Path: s.path, Config: s.config, Store: s.store, GenID: s.genID}
}

// Load validates newPath, then replaces the session's store contents with a
// fresh scan of it. It serializes against itself and against Current: no
// reader ever observes a store mid-reset.
func (s *Session) Load(ctx context.Context, newPath string) error {
	info, err := os.Stat(newPath)
	if err != nil || info.IsDir() {
		return errors.Errorf("session: %q is not a regular file", newPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(); err != nil {
		return errors.Wrap(err, "session: reset store")
	}
	if err := s.scanFileLocked(ctx, newPath); err != nil {
		return err
	}
	s.path = newPath
	return nil
}

// scanLocked runs the first scan, before any concurrent readers exist.
func (s *Session) scanLocked(ctx context.Context, path string) error {
	return s.scanFileLocked(ctx, path)
}

func (s *Session) scanFileLocked(ctx context.Context, path string) error {
	s.genID = uuid.NewString()
	logEntry := s.log.WithFields(logrus.Fields{"component": "session", "gen_id": s.genID, "path": path})

	newChunker := func(f *os.File) (chunk.Chunker, error) {
		switch s.config.Mode {
		case config.ModeFixed:
			return chunk.NewFixed(bufio.NewReaderSize(f, 256*1024), s.config.BlockSize)
		case config.ModeSentinel:
			return chunk.NewSentinel(bufio.NewReaderSize(f, 256*1024), s.config.Delimiter, s.config.BlockSize)
		default:
			return nil, errors.Errorf("session: unknown mode %q", s.config.Mode)
		}
	}

	total, err := analyzer.ScanFile(ctx, path, newChunker, s.store, s.config.Window, s.log)
	if err != nil {
		logEntry.WithError(err).Error("scan failed")
		return errors.Wrap(err, "session: scan")
	}
	logEntry.WithField("total", total).Info("scan committed")
	return nil
}

// Close releases the session's store and deletes its backing file.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Close()
}

// OpenForRandomAccess opens a fresh file handle for the session's current
// file path, for a single random-access read. Per spec.md §5, the source
// file is opened fresh per read on the query path; no shared file handle.
func (snap Snapshot) OpenForRandomAccess() (*os.File, error) {
	f, err := os.Open(snap.Path)
	if err != nil {
		return nil, errors.Wrap(err, "session: open file for read")
	}
	return f, nil
}

// ReadAt reads up to len(buf) bytes of the session's current file starting
// at offset, returning fewer than len(buf) bytes at EOF without error
// (unlike io.ReaderAt, which reports a short read with a non-nil error).
func (snap Snapshot) ReadAt(offset int64, buf []byte) (int, error) {
	f, err := snap.OpenForRandomAccess()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "session: seek")
	}
	n, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return n, err
}

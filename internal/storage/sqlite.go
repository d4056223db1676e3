/*
Package storage implements the persistent store of the learning loop.

It keeps generation events, the feedback log, structural code patterns and
embedding vectors in one embedded SQLite database, using modernc.org/sqlite
(a pure Go, CGo-free implementation). If the database cannot be opened the
store degrades gracefully: writes become no-ops and reads return empty
results.
*/
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
}

var _ Storage = (*SQLiteStorage)(nil)

// DefaultPath returns ~/.genloop/genloop.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".genloop", "genloop.db"), nil
}

// New creates a storage instance backed by the database at dbPath.
// An empty path yields a disabled store. ":memory:" is accepted.
func New(dbPath string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: dbPath != "",
		logger:  logger.Named("storage"),
	}
}

// NewStorage creates a storage instance at the default path.
//
// If the home directory cannot be resolved the store is disabled, but
// operations will not fail.
func NewStorage(logger *zap.Logger) *SQLiteStorage {
	path, err := DefaultPath()
	if err != nil {
		if logger != nil {
			logger.Warn("storage disabled", zap.Error(err))
		}
		path = ""
	}
	return New(path, logger)
}

// Path returns the database location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Init opens the database and runs migrations. It is safe to call
// repeatedly; only the first call does any work.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	s.initOnce.Do(func() {
		if !s.enabled {
			return
		}
		s.initErr = s.open()
		if s.initErr != nil {
			s.enabled = false
			if s.db != nil {
				_ = s.db.Close()
				s.db = nil
			}
			s.logger.Warn("storage disabled", zap.String("path", s.dbPath), zap.Error(s.initErr))
		}
	})
	return s.initErr
}

func (s *SQLiteStorage) open() error {
	if s.dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" databases coherent and serializes
	// writers without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ready lazily initializes the store and reports whether it is usable.
// Callers must hold s.mu.
func (s *SQLiteStorage) ready() bool {
	if err := s.Init(); err != nil {
		return false
	}
	return s.enabled && s.db != nil
}

// Enabled reports whether the database is available.
func (s *SQLiteStorage) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	s.enabled = false
	return nil
}

// Cleanup removes generation events older than the retention window.
// Feedback and patterns are kept: they are the training record.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}

	cutoff := formatTime(time.Now().Add(-retention))
	res, err := s.db.Exec("DELETE FROM generations WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup generations: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.Exec("VACUUM"); err != nil {
		s.logger.Warn("failed to vacuum database", zap.Error(err))
	}
	s.logger.Debug("cleanup finished", zap.Int64("generations_removed", n))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// Package sqlite is the on-device step-count store backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/syncerr"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("step count store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS step_counts (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    count INTEGER NOT NULL
);`

// Config holds options for Open.
type Config struct {
	// Path is the database file. ":memory:" is accepted for throwaway stores.
	Path string
	// BusyTimeout bounds how long a writer waits for a competing writer. Default: 5s.
	BusyTimeout time.Duration
	// MaxOpenConns defaults to 8.
	MaxOpenConns int
}

func (c *Config) setDefaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 8
	}
}

func (c *Config) dsn() string {
	if c.Path == ":memory:" {
		// Every pooled connection must see the same in-memory database.
		return fmt.Sprintf("file::memory:?cache=shared&_busy_timeout=%d", c.BusyTimeout.Milliseconds())
	}
	sep := "?"
	if strings.Contains(c.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("file:%s%s_journal_mode=WAL&_busy_timeout=%d", c.Path, sep, c.BusyTimeout.Milliseconds())
}

// Store persists step counts. It is safe for concurrent use; each operation is a single
// statement, atomic at row granularity.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	logger zerolog.Logger
}

// Open creates the database file if needed and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, syncerr.NewValidationError(syncerr.OpOpen, errors.New("store path is required"))
	}
	cfg.setDefaults()

	logger := logging.Component("sqlite-store")

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, syncerr.NewStorageError(syncerr.OpOpen, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, syncerr.NewStorageError(syncerr.OpOpen, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, syncerr.NewStorageError(syncerr.OpOpen, fmt.Errorf("create schema: %w", err))
	}

	logger.Info().Str("path", cfg.Path).Msg("step count store opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Insert appends a record and returns its assigned id. Duplicate counts are allowed.
func (s *Store) Insert(ctx context.Context, count int) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO step_counts (count) VALUES (?)`, count)
	if err != nil {
		return 0, syncerr.NewStorageError(syncerr.OpInsert, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, syncerr.NewStorageError(syncerr.OpInsert, err)
	}
	return id, nil
}

// Latest returns the most recently inserted record, or nil when the store is empty.
func (s *Store) Latest(ctx context.Context) (*domain.StepCount, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var sc domain.StepCount
	err := s.db.QueryRowContext(ctx, `SELECT id, count FROM step_counts ORDER BY id DESC LIMIT 1`).Scan(&sc.ID, &sc.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.NewStorageError(syncerr.OpLoad, err)
	}
	return &sc, nil
}

// All returns every record in insertion order, oldest first.
func (s *Store) All(ctx context.Context) ([]domain.StepCount, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, count FROM step_counts ORDER BY id ASC`)
	if err != nil {
		return nil, syncerr.NewStorageError(syncerr.OpLoad, err)
	}
	defer rows.Close()

	out := make([]domain.StepCount, 0)
	for rows.Next() {
		var sc domain.StepCount
		if err := rows.Scan(&sc.ID, &sc.Count); err != nil {
			return nil, syncerr.NewStorageError(syncerr.OpLoad, err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerr.NewStorageError(syncerr.OpLoad, err)
	}
	return out, nil
}

// Close releases the database. Calling it twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

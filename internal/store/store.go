package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"artiquity/internal/config"
)

// Store manages application persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidTransition indicates a project status change that the lifecycle
// does not allow.
var ErrInvalidTransition = errors.New("store: invalid status transition")

// Open initializes or connects to the application database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Summarize aggregates project counts by status plus the license total.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	ctx = ensureContext(ctx)
	summary := &Summary{ByStatus: make(map[ProjectStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarize projects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan project summary: %w", err)
		}
		parsed, ok := ParseStatus(status)
		if !ok {
			continue
		}
		summary.ByStatus[parsed] = count
		summary.Projects += count
		switch parsed {
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project summary: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM licenses`).Scan(&summary.Licenses); err != nil {
		return nil, fmt.Errorf("summarize licenses: %w", err)
	}
	return summary, nil
}

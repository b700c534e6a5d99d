// Package history persists the queries run in each workbench session.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("history entry not found")

// Status of a recorded query.
type Status string

// Statuses.
const (
	StatusExecuted Status = "executed"
	StatusCacheHit Status = "cache_hit"
	StatusFailed   Status = "failed"
)

// Entry is one recorded query.
type Entry struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id"`
	DatabasePath string        `json:"database_path"`
	Query        string        `json:"query"`
	Status       Status        `json:"status"`
	Statements   int           `json:"statements"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	ExecutedAt   time.Time     `json:"executed_at"`
}

// Store is a SQLite-backed history store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			logger.Warn("failed to enable WAL", "error", err)
		}
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts e, assigning an ID and timestamp when unset.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queries (id, session_id, database_path, query_text, status, statement_count, error_message, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.DatabasePath, e.Query, string(e.Status), e.Statements, e.Error,
		e.Duration.Milliseconds(), e.ExecutedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	s.logger.Debug("recorded query", "id", e.ID, "status", e.Status)
	return nil
}

// ListBySession returns the newest entries of a session first.
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, database_path, query_text, status, statement_count, error_message, duration_ms, executed_at
		FROM queries
		WHERE session_id = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Get returns a single entry.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, database_path, query_text, status, statement_count, error_message, duration_ms, executed_at
		FROM queries
		WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteSession removes all entries of a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queries WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var status string
	var durationMS, executedAt int64
	err := sc.Scan(&e.ID, &e.SessionID, &e.DatabasePath, &e.Query, &status,
		&e.Statements, &e.Error, &durationMS, &executedAt)
	if err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	e.ExecutedAt = time.UnixMilli(executedAt)
	return e, nil
}

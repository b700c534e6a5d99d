// Package conn manages the single database connection owned by a session.
package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotConnected is returned when no database path is configured.
var ErrNotConnected = errors.New("no database selected")

// ConnectionError reports a failed open of a database path.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Invalidator drops state derived from the previous connection.
type Invalidator interface {
	ResetDependent()
}

// Manager holds at most one open handle, keyed by path.
type Manager struct {
	mu       sync.Mutex
	opener   Opener
	deps     Invalidator
	logger   *slog.Logger
	path     string  // configured path
	db       *sql.DB // cache slot
	slotPath string  // path the cached handle was opened for
}

// NewManager creates a manager. deps may be nil.
func NewManager(opener Opener, deps Invalidator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{opener: opener, deps: deps, logger: logger}
}

// Path returns the configured database path.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// connect returns the cached handle for path, opening it on a miss.
// A handle for a different path is closed first.
func (m *Manager) connect(ctx context.Context, path string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx, path)
}

// Current returns the handle for the configured path.
func (m *Manager) Current(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.path == "" {
		return nil, ErrNotConnected
	}
	return m.connectLocked(ctx, m.path)
}

func (m *Manager) connectLocked(ctx context.Context, path string) (*sql.DB, error) {
	if m.db != nil && m.slotPath == path {
		return m.db, nil
	}
	if m.db != nil {
		m.closeLocked()
	}

	db, err := m.opener.Open(ctx, path)
	if err != nil {
		connErr := &ConnectionError{Path: path, Err: err}
		m.logger.Error("connection failed", "path", path, "error", err)
		return nil, connErr
	}
	m.db = db
	m.slotPath = path
	m.logger.Info("connection opened", "path", path)
	return db, nil
}

// Reconfigure points the manager at newPath. When the path changes the
// open handle is closed and dependent session state is reset; the new
// handle is opened lazily. The returned message describes the close.
func (m *Manager) Reconfigure(newPath string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newPath == m.path {
		return "", false
	}
	msg := m.closeLocked()
	m.path = newPath
	m.resetDependent()
	return msg, true
}

// Switch reconfigures to newPath and opens it immediately. On failure the
// previously configured path is restored so the next render reopens it;
// dependent state stays cleared.
func (m *Manager) Switch(ctx context.Context, newPath string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var msgs []string
	prev := m.path
	if newPath != m.path || m.db == nil {
		if msg := m.closeLocked(); msg != "" {
			msgs = append(msgs, msg)
		}
		m.path = newPath
		m.resetDependent()
	}

	if _, err := m.connectLocked(ctx, newPath); err != nil {
		m.path = prev
		return msgs, err
	}
	return append(msgs, fmt.Sprintf("connection %s is set.", newPath)), nil
}

// Close closes the open handle, if any, and resets dependent state.
// It is safe to call repeatedly.
func (m *Manager) Close() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.closeLocked()
	m.resetDependent()
	return msg
}

// Invalidate drops the cache slot so the next access reopens the path.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() string {
	if m.db == nil {
		return "connection not exists (first session)"
	}
	path := m.slotPath
	if err := m.db.Close(); err != nil {
		m.logger.Warn("close failed", "path", path, "error", err)
	}
	m.db = nil
	m.slotPath = ""
	m.logger.Info("connection closed", "path", path)
	return fmt.Sprintf("connection %s was closed", path)
}

func (m *Manager) resetDependent() {
	if m.deps != nil {
		m.deps.ResetDependent()
	}
}

// Package session holds the per-user workbench state that survives across
// render passes.
package session

import (
	"sync"
	"time"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
)

// DefaultEditorText is the editor content of a fresh session.
const DefaultEditorText = "SELECT 1+1;"

// Session is the state of one workbench user. A render pass holds the lock
// for its whole duration; callers Lock before touching any field.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	LastSeen  time.Time

	// CreateConfirmed confirms creating a missing database file. It is a
	// render latch and is cleared by ResetLatches.
	CreateConfirmed bool

	Schema schema.Tree

	EditorText      string
	EditorPayloadID string

	LastQueryText string
	LastResults   *query.Batch

	LintDone   bool
	SubmitDone bool

	conn *conn.Manager
}

// New creates a session whose connection is opened through opener.
func New(id string, opener conn.Opener, cfg Config) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		LastSeen:   now,
		EditorText: DefaultEditorText,
	}
	s.conn = conn.NewManager(opener, s, cfg.Logger)
	return s
}

// Lock acquires the session for a render pass.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Conn returns the connection manager owned by the session.
func (s *Session) Conn() *conn.Manager { return s.conn }

// DatabasePath returns the configured database path, empty when not connected.
func (s *Session) DatabasePath() string { return s.conn.Path() }

// Remember stores a successful execution as the memo.
func (s *Session) Remember(text string, batch query.Batch) {
	s.LastQueryText = text
	s.LastResults = &batch
}

// Memoized returns the stored results when text is identical to the last
// successfully executed text.
func (s *Session) Memoized(text string) (query.Batch, bool) {
	if s.LastResults == nil || s.LastQueryText != text {
		return query.Batch{}, false
	}
	return *s.LastResults, true
}

// ResetLatches clears the one-shot flags at the end of a render pass.
func (s *Session) ResetLatches() {
	s.LintDone = false
	s.SubmitDone = false
	s.CreateConfirmed = false
}

// ResetDependent drops state derived from the current connection.
// It is invoked by the connection manager on reconfigure and close.
func (s *Session) ResetDependent() {
	s.Schema = nil
	s.LastQueryText = ""
	s.LastResults = nil
}

// Touch records activity.
func (s *Session) Touch() { s.LastSeen = time.Now() }

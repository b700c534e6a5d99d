package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/meager/internal/conn"
)

// Config holds options shared by all sessions of a registry.
type Config struct {
	// IdleTimeout expires sessions not seen for this long. Zero disables expiry.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Registry maps session ids to sessions. Each session owns its own connection.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opener   conn.Opener
	cfg      Config
}

// NewRegistry creates an empty registry.
func NewRegistry(opener conn.Opener, cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opener:   opener,
		cfg:      cfg,
	}
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := New(id, r.opener, r.cfg)
	r.sessions[id] = s
	r.cfg.Logger.Debug("session created", "session", id)
	return s
}

// Lookup returns an existing session.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and removes sessions idle since before now-IdleTimeout.
// Sessions in the middle of a render pass are skipped.
func (r *Registry) Sweep(now time.Time) int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if now.Sub(s.LastSeen) > r.cfg.IdleTimeout {
			s.conn.Close()
			delete(r.sessions, id)
			removed++
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		r.cfg.Logger.Debug("expired idle sessions", "count", removed)
	}
	return removed
}

// Close closes every session's connection.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.conn.Close()
		delete(r.sessions, id)
	}
}

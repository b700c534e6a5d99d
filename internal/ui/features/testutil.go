// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/editor"
	"github.com/leapstack-labs/meager/internal/examples"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/session"
	"github.com/leapstack-labs/meager/internal/testutil"
	"github.com/leapstack-labs/meager/internal/ui/notifier"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Registry     *session.Registry
	Controller   *editor.Controller
	History      *history.Store
	Examples     *examples.Source
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore

	// Dir is a temp directory for database files.
	Dir string
}

// SetupTestFixture creates sessions backed by real DuckDB files, a
// migrated SQLite history store and the builtin example catalog.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	dir := t.TempDir()

	store, err := history.Open(filepath.Join(dir, "state.db"), logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	src, err := examples.NewSource("", logger)
	require.NoError(t, err)

	registry := session.NewRegistry(conn.DuckDBOpener{Logger: logger}, session.Config{Logger: logger})
	t.Cleanup(registry.Close)

	controller := editor.New(editor.Config{
		Executor: query.NewExecutor(0, logger),
		Recorder: store,
		Logger:   logger,
	})

	return &TestFixture{
		Registry:     registry,
		Controller:   controller,
		History:      store,
		Examples:     src,
		Notifier:     notifier.New(),
		SessionStore: NewTestSessionStore(),
		Dir:          dir,
	}
}

// DatabasePath returns a path for a DuckDB file inside the fixture directory.
func (f *TestFixture) DatabasePath(name string) string {
	return filepath.Join(f.Dir, name)
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// RequestWithTimeout wraps a request with a context timeout. The context
// is cancelled when the test ends.
func RequestWithTimeout(t *testing.T, r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	t.Cleanup(cancel)
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}

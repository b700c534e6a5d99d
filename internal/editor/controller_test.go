package editor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/lint"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/session"
	"github.com/leapstack-labs/meager/internal/testutil"
)

type memoryRecorder struct {
	entries []history.Entry
}

func (r *memoryRecorder) Record(_ context.Context, e history.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRecorder) statuses() []history.Status {
	out := make([]history.Status, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Status
	}
	return out
}

type failingFormatter struct{}

func (failingFormatter) Fix(string, string) (string, error) {
	return "", &lint.FormatterError{Dialect: "duckdb", Msg: "boom"}
}

func newDuckDBSession(t *testing.T) *session.Session {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	s := session.New("test-session", conn.DuckDBOpener{Logger: logger}, session.Config{Logger: logger})
	s.Conn().Reconfigure(filepath.Join(t.TempDir(), "editor.duckdb"))
	t.Cleanup(func() { s.Conn().Close() })
	return s
}

func newMockSession(t *testing.T) (*session.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	opener := conn.OpenerFunc(func(context.Context, string) (*sql.DB, error) { return db, nil })
	s := session.New("mock-session", opener, session.Config{})
	s.Conn().Reconfigure("mock.duckdb")
	return s, mock
}

func newController(t *testing.T, rec Recorder) *Controller {
	logger := testutil.NewTestLogger(t)
	return New(Config{
		Executor: query.NewExecutor(0, logger),
		Recorder: rec,
		Logger:   logger,
	})
}

func TestDispatch_SubmitExecutes(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	rec := &memoryRecorder{}
	c := newController(t, rec)

	out := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1+1 AS two;", ID: "e1"})

	require.NoError(t, out.ExecErr)
	assert.True(t, out.Submitted)
	assert.True(t, out.Executed)
	assert.False(t, out.CacheHit)
	require.NotNil(t, out.Batch)
	require.Len(t, out.Batch.Results, 1)
	assert.Equal(t, []string{"two"}, out.Batch.Results[0].Columns)
	assert.Equal(t, [][]string{{"2"}}, out.Batch.Results[0].Rows)

	assert.Equal(t, "SELECT 1+1 AS two;", s.EditorText)
	assert.Equal(t, "e1", s.EditorPayloadID)
	assert.Equal(t, "SELECT 1+1 AS two;", s.LastQueryText)
	assert.NotNil(t, s.LastResults)
	assert.False(t, s.SubmitDone, "latches are reset at the end of the pass")
	assert.False(t, s.LintDone)
	assert.Equal(t, []history.Status{history.StatusExecuted}, rec.statuses())
}

func TestDispatch_IdenticalTextIsCacheHit(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockSession(t)
	rec := &memoryRecorder{}
	logger, logs := testutil.NewRecordingLogger(t)
	c := New(Config{Executor: query.NewExecutor(0, logger), Recorder: rec, Logger: logger})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 42").WillReturnRows(sqlmock.NewRows([]string{"42"}).AddRow(int64(42)))
	mock.ExpectCommit()

	first := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 42", ID: "a"})
	require.NoError(t, first.ExecErr)
	require.True(t, first.Executed)

	second := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 42", ID: "b"})
	require.NoError(t, second.ExecErr)
	assert.True(t, second.CacheHit)
	assert.False(t, second.Executed)
	assert.Equal(t, first.Batch.Results, second.Batch.Results)

	assert.NoError(t, mock.ExpectationsWereMet(), "the second submit must not reach the database")
	assert.Equal(t, []history.Status{history.StatusExecuted, history.StatusCacheHit}, rec.statuses())
	assert.True(t, logs.Contains("query executed"))
	assert.True(t, logs.Contains("query cache"))
}

func TestDispatch_WhitespaceChangeReexecutes(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockSession(t)
	c := newController(t, nil)

	for range 2 {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
		mock.ExpectCommit()
	}

	first := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "a"})
	require.NoError(t, first.ExecErr)
	require.True(t, first.Executed)

	second := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1 ", ID: "b"})
	require.NoError(t, second.ExecErr)
	assert.True(t, second.Executed)
	assert.False(t, second.CacheHit)
	assert.Equal(t, "SELECT 1 ", s.LastQueryText)
	assert.NoError(t, mock.ExpectationsWereMet(), "text differing only in whitespace must reach the database")
}

func TestDispatch_SchemaRefreshFailureKeepsTree(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	opener := conn.OpenerFunc(func(context.Context, string) (*sql.DB, error) { return db, nil })
	s := session.New("schema-session", opener, session.Config{})
	s.Conn().Reconfigure("mock.duckdb")

	previous := schema.Fragment("mock", "main", "old", []schema.Column{{Name: "id", Type: "INTEGER"}})
	s.Schema = previous

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("information_schema").WillReturnError(errors.New("catalog unavailable"))

	out := newController(t, nil).Dispatch(ctx, s, Event{Type: EventSubmit, Text: "CREATE TABLE t (a INTEGER)", ID: "ddl"})

	require.NoError(t, out.ExecErr)
	assert.True(t, out.Executed)
	require.Error(t, out.SchemaErr)
	assert.Contains(t, out.SchemaErr.Error(), "catalog unavailable")
	assert.Equal(t, previous, s.Schema)
	assert.Equal(t, "CREATE TABLE t (a INTEGER)", s.LastQueryText, "the batch is still memoized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatch_ConsumedIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockSession(t)
	c := newController(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	mock.ExpectCommit()

	c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "same"})

	for _, typ := range []EventType{EventSubmit, EventLint} {
		out := c.Dispatch(ctx, s, Event{Type: typ, Text: "SELECT 2", ID: "same"})
		assert.True(t, out.Ignored, string(typ))
		assert.Nil(t, out.Batch)
		assert.Equal(t, "SELECT 1", s.EditorText)
		assert.Equal(t, "SELECT 1", s.LastQueryText)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatch_EmptyTextAndUnknownTypeIgnored(t *testing.T) {
	s, _ := newMockSession(t)
	c := newController(t, nil)

	tests := []Event{
		{Type: EventSubmit, Text: "", ID: "x1"},
		{Type: EventLint, Text: "", ID: "x2"},
		{Type: "blur", Text: "SELECT 1", ID: "x3"},
	}
	for _, ev := range tests {
		out := c.Dispatch(context.Background(), s, ev)
		assert.True(t, out.Ignored)
		assert.Equal(t, session.DefaultEditorText, s.EditorText)
		assert.Empty(t, s.EditorPayloadID)
	}
}

func TestDispatch_PlainRenderDoesNothing(t *testing.T) {
	s, mock := newMockSession(t)
	out := newController(t, nil).Dispatch(context.Background(), s, Event{})
	assert.False(t, out.Ignored)
	assert.Nil(t, out.Batch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatch_LintFormats(t *testing.T) {
	s, mock := newMockSession(t)
	c := newController(t, nil)

	out := c.Dispatch(context.Background(), s, Event{
		Type: EventLint,
		Text: "select a -- the a column\nfrom t /* all rows */",
		ID:   "l1",
	})

	require.NoError(t, out.LintErr)
	assert.True(t, out.Linted)
	assert.Equal(t, "SELECT a\nFROM t;\n", s.EditorText)
	assert.Equal(t, "l1", s.EditorPayloadID)
	assert.False(t, s.LintDone)
	assert.Nil(t, out.Batch, "lint never executes")
	assert.NoError(t, mock.ExpectationsWereMet())

	// a submit carrying the consumed id is ignored as well
	again := c.Dispatch(context.Background(), s, Event{Type: EventSubmit, Text: "SELECT 9", ID: "l1"})
	assert.True(t, again.Ignored)
}

func TestDispatch_LintFailureKeepsCleanedText(t *testing.T) {
	s, _ := newMockSession(t)
	c := New(Config{Formatter: failingFormatter{}, Logger: testutil.NewTestLogger(t)})

	out := c.Dispatch(context.Background(), s, Event{Type: EventLint, Text: "SELECT 1; -- c\n\n  SELECT 2;", ID: "l"})

	var fe *lint.FormatterError
	require.ErrorAs(t, out.LintErr, &fe)
	assert.Equal(t, "SELECT 1;\nSELECT 2;", s.EditorText)
}

func TestDispatch_ExecutionErrorKeepsPreviousMemo(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	rec := &memoryRecorder{}
	c := newController(t, rec)

	ok := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "1"})
	require.NoError(t, ok.ExecErr)

	bad := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT * FROM nowhere", ID: "2"})

	var execErr *query.ExecutionError
	require.ErrorAs(t, bad.ExecErr, &execErr)
	assert.Nil(t, bad.Batch)
	assert.Equal(t, "SELECT 1", s.LastQueryText)
	assert.Equal(t, "SELECT * FROM nowhere", s.EditorText)
	assert.Equal(t, []history.Status{history.StatusExecuted, history.StatusFailed}, rec.statuses())
	assert.NotEmpty(t, rec.entries[1].Error)
}

func TestDispatch_MutatingQueryRefreshesSchema(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	c := newController(t, nil)

	out := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "CREATE TABLE people (id INTEGER, name VARCHAR);", ID: "c"})
	require.NoError(t, out.ExecErr)
	require.NoError(t, out.SchemaErr)

	tables := s.Schema.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "people", tables[0].Name)
	assert.Equal(t, "main", tables[0].Schema)

	require.Len(t, out.Batch.Results, 1)
	assert.True(t, out.Batch.Results[0].Empty())
}

func TestDispatch_NonMutatingQueryKeepsSchema(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	c := newController(t, nil)
	s.Schema = nil

	out := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "q"})
	require.NoError(t, out.ExecErr)
	assert.Nil(t, s.Schema)
}

func TestDispatch_NotConnected(t *testing.T) {
	s := session.New("s", conn.DuckDBOpener{}, session.Config{})
	out := newController(t, nil).Dispatch(context.Background(), s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "n"})
	assert.True(t, errors.Is(out.ExecErr, conn.ErrNotConnected))
}

func TestDispatch_ReconfigureForcesReexecution(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	c := newController(t, nil)

	require.True(t, c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "1"}).Executed)

	s.Conn().Reconfigure(filepath.Join(t.TempDir(), "other.duckdb"))
	out := c.Dispatch(ctx, s, Event{Type: EventSubmit, Text: "SELECT 1", ID: "2"})
	assert.True(t, out.Executed)
	assert.False(t, out.CacheHit)
}

func TestRefreshSchema(t *testing.T) {
	ctx := context.Background()
	s := newDuckDBSession(t)
	c := newController(t, nil)

	db, err := s.Conn().Current(ctx)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE t (a INTEGER)")
	require.NoError(t, err)

	require.NoError(t, c.RefreshSchema(ctx, s))
	assert.Len(t, s.Schema.Tables(), 1)

	unbound := session.New("u", conn.DuckDBOpener{}, session.Config{})
	assert.ErrorIs(t, c.RefreshSchema(ctx, unbound), conn.ErrNotConnected)
}

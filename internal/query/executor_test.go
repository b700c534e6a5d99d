package query

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/meager/internal/testutil"

	_ "github.com/marcboeker/go-duckdb"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestExecutor_Execute_CommitsBatch(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE t (a INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT a FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(int64(1)).AddRow(nil))
	mock.ExpectCommit()

	exec := NewExecutor(0, testutil.NewTestLogger(t))
	batch, err := exec.Execute(context.Background(), db, "CREATE TABLE t (a INT); SELECT a FROM t;")
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.True(t, batch.Results[0].Empty())
	assert.Equal(t, []string{"a"}, batch.Results[1].Columns)
	assert.Equal(t, [][]string{{"1"}, {"NULL"}}, batch.Results[1].Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Execute_DropsEmptyFragments(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"2"}).AddRow(int64(2)))
	mock.ExpectCommit()

	batch, err := NewExecutor(0, nil).Execute(context.Background(), db, "SELECT 1; SELECT 2;;  ")
	require.NoError(t, err)
	assert.Len(t, batch.Results, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Execute_RollsBackOnFailure(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("Catalog Error: Table with name missing does not exist")

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE t (a INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT * FROM missing").WillReturnError(boom)
	mock.ExpectRollback()

	batch, err := NewExecutor(0, nil).Execute(context.Background(), db, "CREATE TABLE t (a INT); SELECT * FROM missing; SELECT 3")
	require.Error(t, err)
	assert.Empty(t, batch.Results)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.Index)
	assert.Equal(t, "SELECT * FROM missing", execErr.Statement)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Table with name missing does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Execute_BeginFails(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(assert.AnError)

	_, err := NewExecutor(0, nil).Execute(context.Background(), db, "SELECT 1")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecutor_Execute_CommitFails(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t VALUES (1)").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(assert.AnError)

	_, err := NewExecutor(0, nil).Execute(context.Background(), db, "INSERT INTO t VALUES (1)")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "commit")
}

func TestExecutor_Execute_TruncatesRows(t *testing.T) {
	db, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT n FROM range(5) t(n)").WillReturnRows(rows)
	mock.ExpectCommit()

	batch, err := NewExecutor(3, nil).Execute(context.Background(), db, "SELECT n FROM range(5) t(n)")
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Len(t, batch.Results[0].Rows, 3)
	assert.True(t, batch.Results[0].Truncated)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"bytes", []byte("abc"), "abc"},
		{"int", int64(42), "42"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{"timestamp", time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC), "2024-03-01 12:30:05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", filepath.Join(t.TempDir(), "exec.duckdb"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExecutor_DuckDB_FailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	db := openDuckDB(t)
	exec := NewExecutor(0, testutil.NewTestLogger(t))

	_, err := exec.Execute(ctx, db, "CREATE TABLE kept (a INTEGER); INSERT INTO kept VALUES (1); SELECT * FROM does_not_exist;")
	require.Error(t, err)

	_, err = exec.Execute(ctx, db, "SELECT * FROM kept")
	require.Error(t, err, "table from a failed batch must not exist")
}

func TestExecutor_DuckDB_MixedBatch(t *testing.T) {
	ctx := context.Background()
	db := openDuckDB(t)
	exec := NewExecutor(0, testutil.NewTestLogger(t))

	batch, err := exec.Execute(ctx, db, `
		CREATE TABLE items (id INTEGER, name VARCHAR);
		INSERT INTO items VALUES (1, 'a'), (2, NULL);
		SELECT id, name FROM items ORDER BY id;
	`)
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.True(t, batch.Results[0].Empty())
	assert.True(t, batch.Results[1].Empty())
	assert.Equal(t, []string{"id", "name"}, batch.Results[2].Columns)
	assert.Equal(t, [][]string{{"1", "a"}, {"2", "NULL"}}, batch.Results[2].Rows)
}

func TestExecutor_DuckDB_CommentedSelectReturnsRows(t *testing.T) {
	ctx := context.Background()
	db := openDuckDB(t)
	exec := NewExecutor(0, testutil.NewTestLogger(t))

	tests := []struct {
		name string
		text string
		want [][][]string
	}{
		{
			name: "leading line comment",
			text: "-- my query\nSELECT 42 AS answer;",
			want: [][][]string{{{"42"}}},
		},
		{
			name: "comment after separator",
			text: "SELECT 1 AS a; -- c\nSELECT 2 AS b",
			want: [][][]string{{{"1"}}, {{"2"}}},
		},
		{
			name: "leading block comment",
			text: "/* report\n v2 */ SELECT 'x' AS s",
			want: [][][]string{{{"x"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := exec.Execute(ctx, db, tt.text)
			require.NoError(t, err)
			require.Len(t, batch.Results, len(tt.want))
			for i, rows := range tt.want {
				assert.False(t, batch.Results[i].Empty())
				assert.Equal(t, rows, batch.Results[i].Rows)
			}
		})
	}
}

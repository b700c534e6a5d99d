// Package query executes multi-statement SQL text against a live connection.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxRows caps the rows kept per statement.
const DefaultMaxRows = 1000

// Result is the outcome of one statement in a batch.
type Result struct {
	Statement string     `json:"statement"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
}

// Empty reports whether the statement produced no tabular output.
func (r Result) Empty() bool {
	return len(r.Columns) == 0
}

// Batch holds results in statement order.
type Batch struct {
	Results  []Result      `json:"results"`
	Duration time.Duration `json:"duration"`
}

// ExecutionError reports the statement that aborted a batch.
// All earlier statements of the batch were rolled back.
type ExecutionError struct {
	Index     int
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("failed to execute queries: %v", e.Err)
	}
	return fmt.Sprintf("failed to execute queries: statement %d: %v", e.Index+1, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TxBeginner is satisfied by *sql.DB and *sql.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Executor runs statement batches inside a single transaction.
type Executor struct {
	maxRows int
	logger  *slog.Logger
}

// NewExecutor creates an executor. maxRows <= 0 selects DefaultMaxRows.
func NewExecutor(maxRows int, logger *slog.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{maxRows: maxRows, logger: logger}
}

// Execute splits text into statements and runs them in order in one
// transaction. On the first failure the transaction is rolled back and an
// *ExecutionError is returned; no partial results are reported.
func (e *Executor) Execute(ctx context.Context, db TxBeginner, text string) (Batch, error) {
	start := time.Now()
	stmts := Split(text)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Batch{}, &ExecutionError{Index: -1, Err: fmt.Errorf("begin transaction: %w", err)}
	}

	results := make([]Result, 0, len(stmts))
	for i, stmt := range stmts {
		res, err := e.run(ctx, tx, stmt)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Warn("rollback failed", "error", rbErr)
			}
			e.logger.Debug("batch rolled back", "statement", i+1, "error", err)
			return Batch{}, &ExecutionError{Index: i, Statement: stmt, Err: err}
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, &ExecutionError{Index: len(stmts), Err: fmt.Errorf("commit: %w", err)}
	}

	batch := Batch{Results: results, Duration: time.Since(start)}
	e.logger.Debug("batch committed", "statements", len(stmts), "duration", batch.Duration)
	return batch, nil
}

func (e *Executor) run(ctx context.Context, tx *sql.Tx, stmt string) (Result, error) {
	if !ReturnsRows(stmt) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Result{}, err
		}
		return Result{Statement: stmt}, nil
	}

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	res := Result{Statement: stmt, Columns: cols}
	for rows.Next() {
		if len(res.Rows) >= e.maxRows {
			res.Truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}

		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// FormatValue renders a scanned column value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format("2006-01-02 15:04:05.999999")
	default:
		return fmt.Sprintf("%v", v)
	}
}

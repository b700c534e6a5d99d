package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// IntrospectionError reports a failed catalog query.
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("schema introspection failed for %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("schema introspection failed: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// Querier is the subset of *sql.DB the inspector needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const listTablesQuery = `SELECT table_catalog, table_schema, table_name FROM information_schema.tables ORDER BY table_catalog, table_schema, table_name`

// Inspector reads the catalog metadata of a connection.
type Inspector struct {
	logger *slog.Logger
}

// NewInspector creates an inspector.
func NewInspector(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{logger: logger}
}

// Refresh builds a fresh tree from the connection. The caller replaces its
// stored tree only when the error is nil.
func (i *Inspector) Refresh(ctx context.Context, db Querier) (Tree, error) {
	tables, err := i.listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	tree := Tree{}
	for _, t := range tables {
		cols, err := i.columns(ctx, db, t)
		if err != nil {
			return nil, err
		}
		tree = Merge(tree, Fragment(t.Catalog, t.Schema, t.Name, cols))
	}

	i.logger.Debug("schema refreshed", "tables", len(tables))
	return tree, nil
}

func (i *Inspector) listTables(ctx context.Context, db Querier) ([]Table, error) {
	rows, err := db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, &IntrospectionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Catalog, &t.Schema, &t.Name); err != nil {
			return nil, &IntrospectionError{Err: err}
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Err: err}
	}
	return tables, nil
}

// columns reads PRAGMA table_info, whose rows begin with
// (ordinal, column_name, column_type).
func (i *Inspector) columns(ctx context.Context, db Querier, t Table) ([]Column, error) {
	rows, err := db.QueryContext(ctx, tableInfoQuery(t))
	if err != nil {
		return nil, &IntrospectionError{Table: t.QualifiedName(), Err: err}
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, &IntrospectionError{Table: t.QualifiedName(), Err: err}
	}
	if len(names) < 3 {
		return nil, &IntrospectionError{Table: t.QualifiedName(), Err: fmt.Errorf("table_info returned %d columns", len(names))}
	}

	var cols []Column
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &IntrospectionError{Table: t.QualifiedName(), Err: err}
		}
		cols = append(cols, Column{Name: asString(values[1]), Type: asString(values[2])})
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Table: t.QualifiedName(), Err: err}
	}
	return cols, nil
}

func tableInfoQuery(t Table) string {
	name := strings.ReplaceAll(t.QualifiedName(), "'", "''")
	return fmt.Sprintf("PRAGMA table_info('%s')", name)
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

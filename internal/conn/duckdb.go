package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Params holds DuckDB session setup applied after every open.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings applied with SET (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes the free-form duckdb section of the config.
func ParseParams(raw map[string]any) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// Opener opens a database handle for a path.
type Opener interface {
	Open(ctx context.Context, path string) (*sql.DB, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (*sql.DB, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string) (*sql.DB, error) {
	return f(ctx, path)
}

// MemoryPath selects an in-memory database.
const MemoryPath = ":memory:"

// DuckDBOpener opens DuckDB files through database/sql.
type DuckDBOpener struct {
	Params Params
	Logger *slog.Logger
}

// Open opens path, pins the pool to one connection so session state such
// as USE and SET persists, and applies Params.
func (o DuckDBOpener) Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path == MemoryPath {
		dsn = ""
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if err := o.setup(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (o DuckDBOpener) setup(ctx context.Context, db *sql.DB) error {
	for _, ext := range o.Params.Extensions {
		for _, verb := range []string{"INSTALL", "LOAD"} {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("%s %s", verb, ext)); err != nil {
				return fmt.Errorf("failed to %s extension %s: %w", strings.ToLower(verb), ext, err)
			}
		}
		if o.Logger != nil {
			o.Logger.Debug("loaded extension", "name", ext)
		}
	}

	keys := make([]string, 0, len(o.Params.Settings))
	for k := range o.Params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ReplaceAll(o.Params.Settings[k], "'", "''")
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", k, v)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

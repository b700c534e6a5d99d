package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	Input     string
	Lint      bool
	Create    bool
	NoHistory bool
	MaxRows   int
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec [SQL]",
		Short: "Execute SQL against the database",
		Long: `Execute one or more ';'-separated statements against the DuckDB database
inside a single transaction.

Either every statement takes effect or, on the first failure, none does.
Results are printed per statement in order.`,
		Example: `  # Execute SQL directly
  meager exec "SELECT 42 AS answer"

  # Run a script against a file, creating it if needed
  meager exec --database shop.duckdb --create -i setup.sql

  # Format before executing and print JSON
  meager exec --lint -o json "select 1 as a; select 2 as b"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().BoolVar(&opts.Lint, "lint", false, "Format the SQL before executing it")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create the database file if it does not exist")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the query in the history store")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "Maximum rows fetched per statement (default: ui.max_rows)")

	return cmd
}

func runExec(cmd *cobra.Command, args []string, opts *ExecOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	text, err := readSQL(cmd, args, opts.Input)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no SQL given")
	}

	wb, cleanup, err := newWorkbench(ctx, cmdCtx, workbenchOptions{
		Database:  cmdCtx.Cfg.DatabasePath,
		Create:    opts.Create,
		NoHistory: opts.NoHistory,
		MaxRows:   opts.MaxRows,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.Lint {
		fixed, err := wb.lint(ctx, text)
		if err != nil {
			cmdCtx.Renderer.Warning(fmt.Sprintf("lint failed, running comment-stripped text: %v", err))
		}
		text = fixed
	}

	out := wb.submit(ctx, text)
	if out.ExecErr != nil {
		return out.ExecErr
	}
	if out.SchemaErr != nil {
		cmdCtx.Renderer.Warning(fmt.Sprintf("schema refresh failed: %v", out.SchemaErr))
	}
	if out.Batch == nil {
		return nil
	}
	return renderBatch(cmdCtx.Renderer, *out.Batch, out.CacheHit)
}

// readSQL takes SQL from args, a file, or piped stdin, in that order.
func readSQL(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case input != "":
		content, err := os.ReadFile(input) //nolint:gosec // user-provided path
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), nil
	default:
		return "", nil
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

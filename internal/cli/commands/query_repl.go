package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/meager/internal/cli/output"
)

const (
	replPrompt         = "meager> "
	replContinuePrompt = "   ...> "
)

// ReplOptions holds options for the repl command.
type ReplOptions struct {
	Create    bool
	NoHistory bool
}

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	opts := &ReplOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive SQL shell",
		Long: `Start an interactive SQL shell against the DuckDB database.

Statements are collected until a line ends with ';' and then executed as one
transactional batch. Re-running the same text reuses the previous results.`,
		Example: `  meager repl --database shop.duckdb
  meager repl --database new.duckdb --create`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create the database file if it does not exist")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record queries in the history store")

	return cmd
}

func runREPL(cmd *cobra.Command, opts *ReplOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	wb, cleanup, err := newWorkbench(ctx, cmdCtx, workbenchOptions{
		Database:  cmdCtx.Cfg.DatabasePath,
		Create:    opts.Create,
		NoHistory: opts.NoHistory,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	stateDir := filepath.Dir(cmdCtx.Cfg.StatePath)
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		cmdCtx.Logger.Warn("failed to create state directory", "path", stateDir, "error", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(stateDir, "repl_history"),
		AutoComplete:    newREPLCompleter(wb),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Printf("meager SQL shell (database: %s)\n", wb.session.DatabasePath())
	r.Println("Type .help for commands, .quit to exit")
	r.Println()

	repl := &replState{wb: wb, r: r, rl: rl}
	return repl.loop(ctx)
}

type replState struct {
	wb     *workbench
	r      *output.Renderer
	rl     *readline.Instance
	buffer strings.Builder
}

func (s *replState) loop(ctx context.Context) error {
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buffer.Reset()
			s.rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if s.buffer.Len() == 0 && strings.HasPrefix(trimmed, ".") {
			if quit := s.handleDotCommand(ctx, trimmed); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until a line ends with ';'
		s.buffer.WriteString(line)
		s.buffer.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			s.rl.SetPrompt(replContinuePrompt)
			continue
		}
		s.rl.SetPrompt(replPrompt)

		text := strings.TrimSpace(s.buffer.String())
		s.buffer.Reset()
		s.run(ctx, text)
	}
}

func (s *replState) run(ctx context.Context, text string) {
	out := s.wb.submit(ctx, text)
	if out.ExecErr != nil {
		s.r.Error(out.ExecErr.Error())
		return
	}
	if out.SchemaErr != nil {
		s.r.Warning(fmt.Sprintf("schema refresh failed: %v", out.SchemaErr))
	}
	if out.Batch != nil {
		if err := renderBatch(s.r, *out.Batch, out.CacheHit); err != nil {
			s.r.Error(err.Error())
		}
	}
	s.r.Println()
}

// handleDotCommand runs a dot-command and reports whether the shell should exit.
func (s *replState) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Out())

	case ".lint":
		text := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		if text == "" {
			s.wb.session.Lock()
			text = s.wb.session.EditorText
			s.wb.session.Unlock()
		}
		fixed, err := s.wb.lint(ctx, text)
		if err != nil {
			s.r.Warning(fmt.Sprintf("lint failed: %v", err))
		}
		s.r.Println(strings.TrimRight(fixed, "\n"))

	case ".run":
		s.wb.session.Lock()
		text := s.wb.session.EditorText
		s.wb.session.Unlock()
		s.run(ctx, text)

	case ".schema":
		s.wb.session.Lock()
		tree := s.wb.session.Schema
		s.wb.session.Unlock()
		if err := renderSchema(s.r, tree); err != nil {
			s.r.Error(err.Error())
		}

	case ".history":
		if s.wb.history == nil {
			s.r.Warning("history is disabled")
			return false
		}
		entries, err := s.wb.history.ListBySession(ctx, s.wb.session.ID, 20)
		if err != nil {
			s.r.Error(err.Error())
			return false
		}
		if err := renderHistory(s.r, entries); err != nil {
			s.r.Error(err.Error())
		}

	case ".clear":
		_, _ = fmt.Fprint(s.r.Out(), "\033[H\033[2J")

	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", command))
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .lint [SQL]     Format SQL (default: the last submitted text)
  .run            Run the current editor text again
  .schema         Show tables and columns
  .history        Show queries run in this shell
  .clear          Clear the screen
  .quit / .exit   Exit the shell

Tips:
  - Statements run when a line ends with a semicolon (;)
  - All statements of one submission share a transaction
  - Running identical text again reuses the previous results
  - Tab completion works for table names and dot-commands
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter completes dot-commands and the tables of the session schema.
func newREPLCompleter(wb *workbench) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	wb.session.Lock()
	for _, t := range wb.session.Schema.Tables() {
		items = append(items, readline.PcItem(t.Name))
	}
	wb.session.Unlock()

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".lint"),
		readline.PcItem(".run"),
		readline.PcItem(".schema"),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

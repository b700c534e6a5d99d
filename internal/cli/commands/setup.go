package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/meager/internal/cli/config"
	"github.com/leapstack-labs/meager/internal/cli/output"
	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/editor"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/lint"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/session"
)

const memoryDatabase = conn.MemoryPath

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer stored on the
// command context by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// workbench is a single terminal session driving the same controller as
// the web UI.
type workbench struct {
	session    *session.Session
	controller *editor.Controller
	history    *history.Store // nil when history is disabled
	logger     *slog.Logger
}

type workbenchOptions struct {
	Database  string
	Create    bool
	NoHistory bool
	MaxRows   int
}

// newWorkbench connects a session to the database. The returned cleanup
// closes the connection and the history store.
func newWorkbench(ctx context.Context, cmdCtx *CommandContext, opts workbenchOptions) (*workbench, func(), error) {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	path := opts.Database
	if path == "" {
		path = memoryDatabase
	}
	if path != memoryDatabase {
		switch status := conn.Resolve(path, opts.Create); status {
		case conn.PathReady:
		case conn.PathNeedsConfirmation:
			return nil, nil, fmt.Errorf("database %s does not exist (use --create to create it)", path)
		default:
			return nil, nil, fmt.Errorf("invalid database %s: %w", path, conn.ErrInvalidExtension)
		}
	}

	params, err := cfg.DuckDBParams()
	if err != nil {
		return nil, nil, err
	}
	opener := conn.DuckDBOpener{Params: params, Logger: logger}
	s := session.New(uuid.NewString(), opener, session.Config{Logger: logger})

	s.Lock()
	defer s.Unlock()
	if _, err := s.Conn().Switch(ctx, path); err != nil {
		s.Conn().Close()
		return nil, nil, err
	}

	var store *history.Store
	if !opts.NoHistory {
		store, err = history.Open(cfg.StatePath, logger)
		if err == nil {
			err = store.Migrate()
		}
		if err != nil {
			logger.Warn("history disabled", "error", err)
			if store != nil {
				_ = store.Close()
			}
			store = nil
		}
	}

	maxRows := opts.MaxRows
	if maxRows == 0 {
		maxRows = cfg.UI.MaxRows
	}
	ctrlCfg := editor.Config{
		Formatter: lint.NewFormatter(lint.Options{KeywordCase: cfg.Lint.KeywordCase}),
		Dialect:   cfg.Lint.Dialect,
		Executor:  query.NewExecutor(maxRows, logger),
		Inspector: schema.NewInspector(logger),
		Logger:    logger,
	}
	if store != nil {
		ctrlCfg.Recorder = store
	}
	wb := &workbench{
		session:    s,
		controller: editor.New(ctrlCfg),
		history:    store,
		logger:     logger,
	}

	if err := wb.controller.RefreshSchema(ctx, s); err != nil {
		logger.Warn("schema refresh failed", "error", err)
	}

	cleanup := func() {
		s.Lock()
		s.Conn().Close()
		s.Unlock()
		if store != nil {
			_ = store.Close()
		}
	}
	return wb, cleanup, nil
}

// submit runs text through the controller as a fresh submit event.
func (w *workbench) submit(ctx context.Context, text string) editor.Outcome {
	return w.dispatch(ctx, editor.EventSubmit, text)
}

// lint formats text through the controller and returns the new editor text.
func (w *workbench) lint(ctx context.Context, text string) (string, error) {
	out := w.dispatch(ctx, editor.EventLint, text)
	w.session.Lock()
	defer w.session.Unlock()
	return w.session.EditorText, out.LintErr
}

func (w *workbench) dispatch(ctx context.Context, typ editor.EventType, text string) editor.Outcome {
	w.session.Lock()
	defer w.session.Unlock()
	return w.controller.Dispatch(ctx, w.session, editor.Event{Type: typ, Text: text, ID: uuid.NewString()})
}

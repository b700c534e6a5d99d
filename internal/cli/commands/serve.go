package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/editor"
	"github.com/leapstack-labs/meager/internal/examples"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/lint"
	"github.com/leapstack-labs/meager/internal/query"
	"github.com/leapstack-labs/meager/internal/schema"
	"github.com/leapstack-labs/meager/internal/session"
	"github.com/leapstack-labs/meager/internal/ui"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the browser SQL workbench",
		Long: `Start a local web server with the SQL workbench.

The workbench provides:
- A database file selector with confirmation before creating new files
- A SQL editor with lint (auto-format) and Run (Ctrl+Enter)
- Per-statement result tables from one transactional batch
- The live schema tree and the query history of the session`,
		Example: `  # Start on the default port
  meager serve

  # Prefill the database form and open the browser
  meager serve --database shop.duckdb --open

  # Use a custom, live-reloaded example catalog
  meager serve --examples examples.yaml`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	// Values flow through config.Load, so flags only need names and help.
	cmd.Flags().Int("port", 0, "Port to serve on (default: ui.port)")
	cmd.Flags().Bool("open", false, "Open the browser on start")
	cmd.Flags().Bool("watch", true, "Reload the examples file when it changes")
	cmd.Flags().String("examples", "", "YAML file with example queries")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	params, err := cfg.DuckDBParams()
	if err != nil {
		return err
	}

	src, err := examples.NewSource(cfg.UI.ExamplesFile, logger)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.StatePath, logger)
	if err == nil {
		err = store.Migrate()
	}
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := session.NewRegistry(conn.DuckDBOpener{Params: params, Logger: logger}, session.Config{
		IdleTimeout: cfg.UI.IdleTimeout,
		Logger:      logger,
	})

	controller := editor.New(editor.Config{
		Formatter: lint.NewFormatter(lint.Options{KeywordCase: cfg.Lint.KeywordCase}),
		Dialect:   cfg.Lint.Dialect,
		Executor:  query.NewExecutor(cfg.UI.MaxRows, logger),
		Inspector: schema.NewInspector(logger),
		Recorder:  store,
		Logger:    logger,
	})

	defaultDatabase := cfg.DatabasePath
	if defaultDatabase == memoryDatabase {
		defaultDatabase = ""
	}

	server := ui.NewServer(ui.Config{
		Registry:        registry,
		Controller:      controller,
		History:         store,
		Examples:        src,
		Port:            cfg.UI.Port,
		Watch:           cfg.UI.Watch,
		SessionSecret:   cfg.UI.SessionSecret,
		DefaultDatabase: defaultDatabase,
		Logger:          logger,
	})

	url := fmt.Sprintf("http://localhost:%d", cfg.UI.Port)
	if cfg.UI.AutoOpen {
		go openBrowser(url)
	}

	cmdCtx.Renderer.Printf("Starting SQL workbench on %s\n", url)
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}

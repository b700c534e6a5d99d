package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/meager/internal/cli/config"
	"github.com/leapstack-labs/meager/internal/examples"
)

const (
	configFileName   = "meager.yaml"
	examplesFileName = "examples.yaml"
)

// configTemplate is written by init. Paths are relative to the config file.
const configTemplate = `# meager configuration
# Relative paths are resolved against this file's directory.

# database: shop.duckdb
state_path: %s

ui:
  port: %d
  auto_open: false
  watch: true
  max_rows: %d
  idle_timeout: %s
  examples_file: %s
  # session_secret: ${MEAGER_SESSION_SECRET}

lint:
  dialect: %s
  keyword_case: %s

# Applied to every DuckDB connection after it is opened.
# duckdb:
#   extensions: [httpfs, json]
#   settings:
#     threads: "4"
#     memory_limit: 2GB
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a meager.yaml and an editable examples catalog",
		Long: `Initialize a workbench directory with a configuration file and a copy of
the built-in example queries.

This creates:
  - meager.yaml with the default settings
  - examples.yaml, watched by "meager serve" and reloaded on change`,
		Example: `  # Initialize in current directory
  meager init

  # Initialize in a new directory
  meager init analytics

  # Overwrite existing files
  meager init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContext(cmd).Renderer

	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, configFileName)
	examplesPath := filepath.Join(dir, examplesFileName)
	if !force {
		for _, p := range []string{configPath, examplesPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists. Use --force to overwrite", p)
			}
		}
	}

	d := config.Default()
	content := fmt.Sprintf(configTemplate,
		d.StatePath,
		d.UI.Port,
		d.UI.MaxRows,
		d.UI.IdleTimeout,
		examplesFileName,
		d.Lint.Dialect,
		d.Lint.KeywordCase,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.Success(configPath)

	if err := os.WriteFile(examplesPath, examples.Builtin(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", examplesPath, err)
	}
	r.Success(examplesPath)

	r.Println("")
	r.Println("Next steps:")
	r.Println("  meager serve --database shop.duckdb   Open the workbench in the browser")
	r.Println("  meager repl --database shop.duckdb    Start an interactive shell")
	return nil
}

package commands

import (
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show tables and columns of the database",
		Long: `List every table with its columns and types, across the main database
and all attached catalogs.`,
		Example: `  meager schema --database shop.duckdb
  meager schema --database shop.duckdb -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			wb, cleanup, err := newWorkbench(cmd.Context(), cmdCtx, workbenchOptions{
				Database:  cmdCtx.Cfg.DatabasePath,
				NoHistory: true,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			wb.session.Lock()
			tree := wb.session.Schema
			wb.session.Unlock()
			return renderSchema(cmdCtx.Renderer, tree)
		},
	}
}

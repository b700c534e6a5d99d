package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/meager/internal/lint"
)

// FmtOptions holds options for the fmt command.
type FmtOptions struct {
	Dialect     string
	KeywordCase string
	Write       bool
	Check       bool
}

// NewFmtCommand creates the fmt command.
func NewFmtCommand() *cobra.Command {
	opts := &FmtOptions{}

	cmd := &cobra.Command{
		Use:     "fmt [file]",
		Aliases: []string{"lint"},
		Short:   "Format SQL",
		Long: `Format SQL with the same linter the editor's lint action uses.

Comments are removed, every statement is terminated with ';', major clauses
start on their own line and keywords are cased.

SQL is read from the file argument or from stdin.`,
		Example: `  # Print a formatted file
  meager fmt query.sql

  # Format in place with lowercase keywords
  meager fmt -w --keyword-case lower query.sql

  # Fail when a file is not formatted
  meager fmt --check query.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (default: lint.dialect)")
	cmd.Flags().StringVar(&opts.KeywordCase, "keyword-case", "", "Keyword case: upper, lower, preserve (default: lint.keyword_case)")
	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write the result back to the file")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Exit with an error if the input is not formatted")

	_ = cmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return lint.Dialects, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("keyword-case", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{lint.CaseUpper, lint.CaseLower, lint.CasePreserve}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runFmt(cmd *cobra.Command, args []string, opts *FmtOptions) error {
	cmdCtx := NewCommandContext(cmd)

	if opts.Write && len(args) == 0 {
		return fmt.Errorf("--write needs a file argument")
	}

	var input string
	if len(args) == 1 {
		input = args[0]
	}
	text, err := readSQL(cmd, nil, input)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no SQL given")
	}

	dialect := opts.Dialect
	if dialect == "" {
		dialect = cmdCtx.Cfg.Lint.Dialect
	}
	keywordCase := opts.KeywordCase
	if keywordCase == "" {
		keywordCase = cmdCtx.Cfg.Lint.KeywordCase
	}

	formatter := lint.NewFormatter(lint.Options{KeywordCase: keywordCase})
	fixed, err := formatter.Fix(lint.StripComments(text), dialect)
	if err != nil {
		cmdCtx.Logger.Debug("format failed", "input", input, "error", err)
		return err
	}

	switch {
	case opts.Check:
		if fixed != text {
			return fmt.Errorf("%s is not formatted", displayName(input))
		}
		cmdCtx.Renderer.Success(fmt.Sprintf("%s is formatted", displayName(input)))
		return nil
	case opts.Write:
		if fixed == text {
			return nil
		}
		if err := os.WriteFile(input, []byte(fixed), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", input, err)
		}
		cmdCtx.Renderer.Success(fmt.Sprintf("formatted %s", input))
		return nil
	default:
		_, _ = fmt.Fprint(cmd.OutOrStdout(), fixed)
		return nil
	}
}

func displayName(input string) string {
	if input == "" {
		return "stdin"
	}
	return input
}

package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/meager/internal/conn"
	"github.com/leapstack-labs/meager/internal/lint"
)

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	if c.DatabasePath != "" && c.DatabasePath != conn.MemoryPath {
		if err := conn.ValidatePath(c.DatabasePath); err != nil {
			return fmt.Errorf("invalid database: %w", err)
		}
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output %q (expected one of: %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("invalid ui.port %d", c.UI.Port)
	}
	if c.UI.IdleTimeout < 0 {
		return fmt.Errorf("invalid ui.idle_timeout %s", c.UI.IdleTimeout)
	}
	if c.UI.MaxRows < 0 {
		return fmt.Errorf("invalid ui.max_rows %d", c.UI.MaxRows)
	}
	if !slices.Contains(lint.Dialects, c.Lint.Dialect) {
		return fmt.Errorf("unsupported lint.dialect %q (expected one of: %s)", c.Lint.Dialect, strings.Join(lint.Dialects, ", "))
	}
	switch c.Lint.KeywordCase {
	case lint.CaseUpper, lint.CaseLower, lint.CasePreserve:
	default:
		return fmt.Errorf("invalid lint.keyword_case %q", c.Lint.KeywordCase)
	}
	if _, err := c.DuckDBParams(); err != nil {
		return err
	}
	return nil
}

// Package config provides configuration management for the meager CLI.
package config

import (
	"time"

	"github.com/leapstack-labs/meager/internal/conn"
)

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	AutoOpen      bool   `koanf:"auto_open"`
	Watch         bool   `koanf:"watch"`
	MaxRows       int    `koanf:"max_rows"`
	ExamplesFile  string `koanf:"examples_file"`
	SessionSecret string `koanf:"session_secret"`

	// IdleTimeout closes the connection of sessions not seen for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// LintConfig holds formatter settings.
type LintConfig struct {
	Dialect     string `koanf:"dialect"`
	KeywordCase string `koanf:"keyword_case"`
}

// Config holds all CLI configuration options.
type Config struct {
	DatabasePath string         `koanf:"database"`
	StatePath    string         `koanf:"state_path"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	UI           UIConfig       `koanf:"ui"`
	Lint         LintConfig     `koanf:"lint"`
	DuckDB       map[string]any `koanf:"duckdb"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// DuckDBParams decodes the duckdb section.
func (c *Config) DuckDBParams() (conn.Params, error) {
	return conn.ParseParams(c.DuckDB)
}

// Default configuration values.
const (
	DefaultStateFile   = ".meager/state.db"
	DefaultOutput      = "auto" // TTY=text, otherwise markdown
	DefaultPort        = 8501
	DefaultMaxRows     = 1000
	DefaultDialect     = "duckdb"
	DefaultKeywordCase = "upper"
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultSessionSecret signs session cookies when none is configured.
	// Set ui.session_secret for anything but local use.
	DefaultSessionSecret = "meager-local-session-secret-key!"
)

// Output formats.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{OutputAuto, OutputText, OutputMarkdown, OutputJSON}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		UI: UIConfig{
			Port:          DefaultPort,
			AutoOpen:      false,
			Watch:         true,
			MaxRows:       DefaultMaxRows,
			SessionSecret: DefaultSessionSecret,
			IdleTimeout:   DefaultIdleTimeout,
		},
		Lint: LintConfig{
			Dialect:     DefaultDialect,
			KeywordCase: DefaultKeywordCase,
		},
	}
}

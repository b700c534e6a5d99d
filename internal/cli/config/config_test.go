package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/meager/internal/testutil"
)

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "meager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "")
	flags.String("state", "", "")
	flags.String("output", "", "")
	flags.Int("port", 0, "")
	flags.Bool("verbose", false, "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabasePath)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.Equal(t, DefaultMaxRows, cfg.UI.MaxRows)
	assert.True(t, cfg.UI.Watch)
	assert.Equal(t, DefaultSessionSecret, cfg.UI.SessionSecret)
	assert.Equal(t, DefaultIdleTimeout, cfg.UI.IdleTimeout)
	assert.Equal(t, "duckdb", cfg.Lint.Dialect)
	assert.Equal(t, "upper", cfg.Lint.KeywordCase)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
database: data/app.duckdb
output: json
ui:
  port: 9000
  max_rows: 10
lint:
  keyword_case: lower
duckdb:
  extensions: [json]
  settings:
    threads: 2
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "app.duckdb"), cfg.DatabasePath, "relative paths resolve against the config dir")
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, OutputJSON, cfg.OutputFormat)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.Equal(t, 10, cfg.UI.MaxRows)
	assert.Equal(t, "lower", cfg.Lint.KeywordCase)
	assert.Equal(t, path, GetConfigFileUsed())

	params, err := cfg.DuckDBParams()
	require.NoError(t, err)
	assert.Equal(t, []string{"json"}, params.Extensions)
	assert.Equal(t, map[string]string{"threads": "2"}, params.Settings)
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "output: text\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	chdir(t, nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, OutputText, cfg.OutputFormat)

	rootAbs, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(cfg.ProjectRoot)
	require.NoError(t, err)
	assert.Equal(t, rootAbs, gotRoot)
}

func TestLoad_EnvPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "output: text\nui:\n  port: 9000\n")

	t.Setenv("MEAGER_OUTPUT", "markdown")
	t.Setenv("MEAGER_UI__PORT", "9100")
	t.Setenv("MEAGER_UI__IDLE_TIMEOUT", "45m")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, OutputMarkdown, cfg.OutputFormat)
	assert.Equal(t, 9100, cfg.UI.Port)
	assert.Equal(t, 45*time.Minute, cfg.UI.IdleTimeout)
}

func TestLoad_FlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeConfig(t, dir, "output: text\nui:\n  port: 9000\n")
	t.Setenv("MEAGER_OUTPUT", "markdown")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--output", "json", "--port", "7000", "--state", "custom/state.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, cfg.OutputFormat)
	assert.Equal(t, 7000, cfg.UI.Port)
	assert.Equal(t, "state.db", filepath.Base(cfg.StatePath))
	assert.True(t, filepath.IsAbs(cfg.StatePath))
}

func TestLoad_FlagNotSetUsesEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("MEAGER_OUTPUT", "markdown")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, OutputMarkdown, cfg.OutputFormat)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEAGER_TEST_SECRET", "from-env-secret")
	path := writeConfig(t, dir, "ui:\n  session_secret: ${MEAGER_TEST_SECRET}\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env-secret", cfg.UI.SessionSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"bad extension", "database: data.sqlite\n", "invalid database"},
		{"bad output", "output: xml\n", "invalid output"},
		{"bad dialect", "lint:\n  dialect: oracle\n", "unsupported lint.dialect"},
		{"bad keyword case", "lint:\n  keyword_case: title\n", "invalid lint.keyword_case"},
		{"bad port", "ui:\n  port: 70000\n", "invalid ui.port"},
		{"unknown duckdb key", "duckdb:\n  plugins: [x]\n", "invalid duckdb params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "falls back to a discard logger")

	logger := testutil.NewTestLogger(t)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")

	tests := []struct {
		input, want string
	}{
		{"${TEST_VAR_ONE}", "value_one"},
		{"prefix_${TEST_VAR_ONE}_suffix", "prefix_value_one_suffix"},
		{"${MEAGER_UNSET_VARIABLE}", "${MEAGER_UNSET_VARIABLE}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.input), tt.input)
	}
}

func TestLoad_IgnoresCommandFlags(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	flags := testFlags()
	flags.Bool("lint", false, "")
	flags.Bool("create", false, "")
	require.NoError(t, flags.Parse([]string{"--lint", "--create"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, DefaultDialect, cfg.Lint.Dialect)
	assert.Equal(t, DefaultKeywordCase, cfg.Lint.KeywordCase)
}

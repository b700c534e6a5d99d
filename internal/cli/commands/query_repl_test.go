package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/leapstack-labs/meager/internal/cli/testutil"
	"github.com/leapstack-labs/meager/internal/testutil"
)

func newTestREPL(t *testing.T, noHistory bool) (*replState, *clitest.TestRenderer) {
	t.Helper()
	tr := clitest.NewTestRendererMarkdown()
	cmdCtx := &CommandContext{
		Cfg:      testConfig(t),
		Logger:   testutil.NewTestLogger(t),
		Renderer: tr.Renderer,
	}
	wb, cleanup, err := newWorkbench(context.Background(), cmdCtx, workbenchOptions{NoHistory: noHistory})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return &replState{wb: wb, r: tr.Renderer}, tr
}

func TestREPL_RunAndCache(t *testing.T) {
	ctx := context.Background()
	repl, tr := newTestREPL(t, false)

	repl.run(ctx, "CREATE TABLE t (a INTEGER); INSERT INTO t VALUES (1); SELECT a FROM t;")
	out := tr.Output()
	assert.Contains(t, out, "query 1: No result (execution success)")
	assert.Contains(t, out, "query 3:")
	assert.Contains(t, out, "3 statement(s) in")

	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".run"))
	assert.Contains(t, tr.Output(), "3 statement(s) from cache")

	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".history"))
	assert.Equal(t, 2, strings.Count(tr.Output(), "CREATE TABLE t"), "executed and cached runs are both recorded")
}

func TestREPL_ExecutionError(t *testing.T) {
	repl, tr := newTestREPL(t, true)

	repl.run(context.Background(), "SELECT * FROM missing_table;")
	assert.Contains(t, tr.ErrorOutput(), "missing_table")
	assert.NotContains(t, tr.Output(), "query 1:")
}

func TestREPL_DotCommands(t *testing.T) {
	ctx := context.Background()
	repl, tr := newTestREPL(t, true)

	assert.True(t, repl.handleDotCommand(ctx, ".quit"))
	assert.True(t, repl.handleDotCommand(ctx, ".EXIT"))

	assert.False(t, repl.handleDotCommand(ctx, ".help"))
	assert.Contains(t, tr.Output(), ".schema")

	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".lint select a,b from t"))
	assert.Equal(t, "SELECT a, b\nFROM t;", strings.TrimSpace(tr.Output()))

	tr.Reset()
	repl.run(ctx, "CREATE TABLE items (id INTEGER, label VARCHAR);")
	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".schema"))
	assert.Contains(t, tr.Output(), "items")
	assert.Contains(t, tr.Output(), "label")

	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".history"))
	assert.Contains(t, tr.ErrorOutput(), "history is disabled")

	tr.Reset()
	assert.False(t, repl.handleDotCommand(ctx, ".bogus"))
	assert.Contains(t, tr.ErrorOutput(), "unknown command: .bogus")
}

func TestREPL_Completer(t *testing.T) {
	repl, _ := newTestREPL(t, true)
	repl.run(context.Background(), "CREATE TABLE orders (id INTEGER);")

	completer := newREPLCompleter(repl.wb)
	var names []string
	for _, child := range completer.GetChildren() {
		names = append(names, strings.TrimSpace(string(child.GetName())))
	}
	assert.Contains(t, names, "orders")
	assert.Contains(t, names, ".quit")
}

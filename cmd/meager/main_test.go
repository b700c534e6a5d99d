package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/meager/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}

	if !strings.Contains(buf.String(), "meager") {
		t.Errorf("version output should contain 'meager', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"exec", "repl", "fmt", "schema", "serve", "completion"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestExecCommand(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"exec",
		"--database", filepath.Join(tmpDir, "test.duckdb"),
		"--state", filepath.Join(tmpDir, "state.db"),
		"--create",
		"--output", "json",
		"CREATE TABLE t AS SELECT 1 AS id; SELECT id FROM t",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("exec command error = %v", err)
	}

	var results []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("exec output is not JSON: %v\n%s", err, buf.String())
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestExecCommandFailure(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := cli.NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"exec",
		"--state", filepath.Join(tmpDir, "state.db"),
		"SELECT * FROM does_not_exist",
	})

	if err := cmd.Execute(); err == nil {
		t.Error("exec against a missing table should fail")
	}
}

func TestCompletionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"completion", "bash"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("completion command error = %v", err)
	}
	if !strings.Contains(buf.String(), "meager") {
		t.Error("bash completion should mention the program name")
	}
}

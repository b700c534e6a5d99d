// Package testutil provides test utilities for structured logging.
package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// LogBuffer keeps the log lines written by a recording logger.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Lines returns the recorded lines in order.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimRight(b.buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Contains reports whether any line has msg as its message.
func (b *LogBuffer) Contains(msg string) bool {
	needle := "msg=" + quoteMsg(msg)
	for _, line := range b.Lines() {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}

// NewRecordingLogger returns a logger that writes info and above to t.Log()
// and to the returned buffer.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogBuffer) {
	t.Helper()
	lb := &LogBuffer{}
	w := multiWriter{t: t, lb: lb}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})), lb
}

// quoteMsg mirrors how the text handler renders a message value.
func quoteMsg(msg string) string {
	if strings.ContainsAny(msg, " =\"") {
		return `"` + strings.ReplaceAll(msg, `"`, `\"`) + `"`
	}
	return msg
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

type multiWriter struct {
	t  testing.TB
	lb *LogBuffer
}

func (w multiWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	w.lb.mu.Lock()
	defer w.lb.mu.Unlock()
	return w.lb.buf.Write(p)
}

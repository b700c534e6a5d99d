package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingLogger(t *testing.T) {
	logger, logs := NewRecordingLogger(t)

	logger.Debug("hidden")
	logger.Info("query cache", "session", "s1")
	logger.Warn("linter executed")

	assert.Len(t, logs.Lines(), 2)
	assert.True(t, logs.Contains("query cache"))
	assert.True(t, logs.Contains("linter executed"))
	assert.False(t, logs.Contains("hidden"))
	assert.False(t, logs.Contains("query"), "matches whole messages only")
}

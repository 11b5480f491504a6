package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input))
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Colored: false})
	logger.output = &buf

	logger.Info("test message")

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "test message")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelWarn, Colored: false})
	logger.output = &buf

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Colored: false})
	component := logger.WithComponent("interpreter")
	component.output = &buf

	component.Info("step started")

	assert.Contains(t, buf.String(), "[interpreter]")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Colored: false})
	withFields := logger.WithFields(map[string]interface{}{"step_id": "s1"})
	withFields.output = &buf

	withFields.Info("dispatching")

	assert.Contains(t, buf.String(), "step_id=s1")
}

func TestLoggerFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := tmpDir + "/test.log"

	logger := New(&Config{Level: LevelDebug, FilePath: logPath, Colored: false})
	defer logger.Close()

	logger.Info("file log test")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file log test")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Colored: false})
	logger.output = &buf
	SetGlobal(logger)

	Global().Info("global test message")

	assert.Contains(t, buf.String(), "global test message")
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "Red", stripANSI("\033[31mRed\033[0m"))
	assert.Equal(t, "No colors", stripANSI("No colors"))
}

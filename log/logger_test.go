package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelWarn)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG] debug 1")
	assert.NotContains(t, out, "[INFO] info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
	assert.Contains(t, out, "[stategraph]")
}

func TestDefaultLogger_NoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelNone)

	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")

	assert.Empty(t, buf.String())
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelNone, "NONE"},
		{LogLevel(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{" warn ", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"none", LogLevelNone},
		{"disabled", LogLevelNone},
		{"info", LogLevelInfo},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.name), "ParseLevel(%q)", tt.name)
	}
}

func TestPackageLevelLogger(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewCustomLogger(&buf, LogLevelDebug))

	Debug("one")
	Info("two")
	Warn("three")
	Error("four")

	lines := strings.Count(buf.String(), "\n")
	assert.Equal(t, 4, lines)
}

func TestNoOpLogger(t *testing.T) {
	// Must satisfy the interface and never panic.
	var logger Logger = &NoOpLogger{}
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}

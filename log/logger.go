package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents logging severity.
type LogLevel int

const (
	// LogLevelDebug for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo for general informational messages.
	LogLevelInfo
	// LogLevelWarn for warning messages.
	LogLevelWarn
	// LogLevelError for error messages.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// Logger is the logging interface the engine writes to.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// DefaultLogger implements Logger using Go's standard log package.
type DefaultLogger struct {
	logger *log.Logger
	level  LogLevel
}

// NewDefaultLogger creates a new default logger writing to stderr.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "[stategraph] ", log.LstdFlags),
		level:  level,
	}
}

// NewCustomLogger creates a logger with custom output.
func NewCustomLogger(out io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(out, "[stategraph] ", log.LstdFlags),
		level:  level,
	}
}

// Debug logs debug messages.
func (l *DefaultLogger) Debug(format string, v ...any) {
	if l.level <= LogLevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs informational messages.
func (l *DefaultLogger) Info(format string, v ...any) {
	if l.level <= LogLevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs warning messages.
func (l *DefaultLogger) Warn(format string, v ...any) {
	if l.level <= LogLevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs error messages.
func (l *DefaultLogger) Error(format string, v ...any) {
	if l.level <= LogLevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// NoOpLogger is a logger that doesn't log anything.
type NoOpLogger struct{}

// Debug does nothing.
func (l *NoOpLogger) Debug(format string, v ...any) {}

// Info does nothing.
func (l *NoOpLogger) Info(format string, v ...any) {}

// Warn does nothing.
func (l *NoOpLogger) Warn(format string, v ...any) {}

// Error does nothing.
func (l *NoOpLogger) Error(format string, v ...any) {}

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(l))
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error",
// "none") to a LogLevel. Unknown names default to info.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "none", "disable", "disabled":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}

// Package-level logger (default is DefaultLogger with info level).
var defaultLogger Logger = NewDefaultLogger(LogLevelInfo)

// SetDefaultLogger sets the package-level logger. This allows users to
// enable logging globally without passing logger objects around.
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetLogLevel creates and sets a default logger with the specified level.
func SetLogLevel(level LogLevel) {
	defaultLogger = NewDefaultLogger(level)
}

// Debug logs a debug message using the package-level logger.
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs an informational message using the package-level logger.
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs a warning message using the package-level logger.
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs an error message using the package-level logger.
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}

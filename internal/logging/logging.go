// Package logging configures the process-wide structured loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// levelNames labels the custom levels in rendered records.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// Default rotation settings for file loggers. Callers override through
// NewFileLogger's options when a different retention policy is needed.
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

func levelReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system: one structured JSON logger on stderr,
// installed as the slog default. Stdout stays reserved for command output
// (query rows, status tables), so audit records never interleave with data.
func Init(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: levelReplaceAttr,
	})
	structuredLogger = slog.New(handler)
	slog.SetDefault(structuredLogger)
}

// SetLevel replaces the structured logger with one at the given minimum level.
func SetLevel(level slog.Level) {
	Init(level)
}

// InitTee is Init plus an optional rotated JSON file: when filePath is
// non-empty every record goes to both stderr and the file. The returned
// close function releases the file writer; with no file it is a no-op.
func InitTee(filePath string, level slog.Level) (func() error, error) {
	if filePath == "" {
		Init(level)
		return func() error { return nil }, nil
	}

	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   false,
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stderr, logWriter), &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: levelReplaceAttr,
	})
	structuredLogger = slog.New(handler)
	slog.SetDefault(structuredLogger)

	return logWriter.Close, nil
}

// ParseLevel maps a configuration level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
}

// Structured returns the process-wide JSON logger, nil before Init.
func Structured() *slog.Logger {
	return structuredLogger
}

// ForService derives a logger carrying the service attribute from the
// process-wide logger, nil before Init.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Package-level shorthands on the default logger.

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs at the custom fatal level and exits the process.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// FileLoggerOption overrides rotation settings for NewFileLogger.
type FileLoggerOption func(*lumberjack.Logger)

// WithMaxSizeMB sets the rotation threshold in megabytes.
func WithMaxSizeMB(sizeMB int) FileLoggerOption {
	return func(lj *lumberjack.Logger) {
		if sizeMB > 0 {
			lj.MaxSize = sizeMB
		}
	}
}

// WithMaxAgeDays sets how many days rotated files are retained.
func WithMaxAgeDays(days int) FileLoggerOption {
	return func(lj *lumberjack.Logger) {
		if days > 0 {
			lj.MaxAge = days
		}
	}
}

// NewFileLogger builds a JSON logger writing to a rotated file, tagged
// with the service attribute. The returned close function releases the
// file writer.
func NewFileLogger(filePath, serviceName string, level slog.Level, opts ...FileLoggerOption) (*slog.Logger, func() error, error) {
	// lumberjack does not create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   false,
	}
	for _, opt := range opts {
		opt(logWriter)
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: levelReplaceAttr,
	})

	logger := slog.New(fileHandler).With("service", serviceName)

	// lumberjack's Close is about internal state cleanup; rotation manages the
	// actual file handles.
	closeFunc := func() error {
		return logWriter.Close()
	}

	return logger, closeFunc, nil
}

// Package datastore - structured logging for the storage layer.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/syrinxlabs/syrinx/internal/errors"
	"github.com/syrinxlabs/syrinx/internal/logging"
)

var (
	datastoreLogger *slog.Logger
	loggerMu        sync.RWMutex
)

// SetLogger installs the logger used by the datastore package. The CLI
// calls this once after configuration is loaded; until then a default
// service-scoped logger is used.
func SetLogger(l *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	datastoreLogger = l
}

// getLogger returns the datastore logger, falling back to the default
// service logger when none has been installed.
func getLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if datastoreLogger != nil {
		return datastoreLogger
	}
	if l := logging.ForService("datastore"); l != nil {
		return l
	}
	return slog.Default().With("service", "datastore")
}

// GormLogger adapts the GORM logger interface onto slog and feeds the
// per-statement metric families. Every executed statement passes through
// Trace, which makes it the one place operation and table labels are
// derived from SQL text.
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
	metrics       *Metrics
}

// NewGormLogger builds the logger the DataStore hands to gorm.Open.
// metrics may be nil.
func NewGormLogger(slowThreshold time.Duration, logLevel gormlogger.LogLevel, metrics *Metrics) *GormLogger {
	return &GormLogger{
		SlowThreshold: slowThreshold,
		LogLevel:      logLevel,
		metrics:       metrics,
	}
}

// LogMode implements logger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info implements logger.Interface.
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		getLogger().InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn implements logger.Interface.
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		getLogger().WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error implements logger.Interface. These are gorm's own internal
// errors, not statement failures; those arrive through Trace.
func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		getLogger().ErrorContext(ctx, "GORM error",
			"msg", fmt.Sprintf(msg, data...))

		if l.metrics != nil {
			l.metrics.RecordDbOperationError("gorm_internal", "unknown", "gorm_error")
		}
	}
}

// Trace implements logger.Interface. Called once per executed statement
// with the final SQL, timing, and outcome. A missing row is not an
// error here: point lookups translate gorm.ErrRecordNotFound to
// (nil, nil) upstream.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	operation, table := parseSQLOperation(sql)

	if l.metrics != nil {
		l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		l.metrics.RecordQueryResultSize(operation, table, int(rows))
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		enhancedErr := errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "sql_query").
			Context("sql", sql).
			Context("duration_ms", elapsed.Milliseconds()).
			Context("original_error_type", fmt.Sprintf("%T", err)).
			Build()

		getLogger().ErrorContext(ctx, "Database query failed",
			"error", enhancedErr,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "error")
			l.metrics.RecordDbOperationError(operation, table, categorizeError(err))
		}

	case elapsed > l.SlowThreshold && l.SlowThreshold != 0:
		getLogger().WarnContext(ctx, "Slow query detected",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows,
			"threshold", l.SlowThreshold)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}

	case l.LogLevel >= gormlogger.Info:
		getLogger().DebugContext(ctx, "Query executed",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}
	}
}

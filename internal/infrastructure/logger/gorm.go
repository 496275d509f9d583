package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowSQL = 200 * time.Millisecond

// GormLogger routes GORM output to zap. Statements run inside an invoice save
// are logged through the context logger, so they carry request_id and invoice_id.
//
// Record-not-found is not logged: the save path polls for rows it has just written.
type GormLogger struct {
	logger  *zap.Logger
	level   gormlogger.LogLevel
	slowSQL time.Duration
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements are logged as warnings.
// Zero disables slow statement logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowSQL = threshold }
}

func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{logger: zapLogger.Named("gorm"), level: level, slowSQL: defaultSlowSQL}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, enabledAt gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < enabledAt {
		return
	}
	if ce := l.scoped(ctx).Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slowSQL > 0 && elapsed > l.slowSQL

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "SQL error"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, fmt.Sprintf("Slow SQL over %v", l.slowSQL)
	case err == nil && l.level >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "SQL"
	default:
		return
	}

	ce := l.scoped(ctx).Check(lvl, msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func (l *GormLogger) scoped(ctx context.Context) *zap.Logger {
	if reqLogger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return reqLogger.Named("gorm")
	}
	return l.logger
}

// MapGormLogLevel maps the configured log level onto GORM's levels.
// debug and info log every statement, unknown values fall back to warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

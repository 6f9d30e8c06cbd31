package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes the SQL logger
type GormConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LogNotFound also reports gorm.ErrRecordNotFound, which repositories
	// treat as an ordinary miss
	LogNotFound bool
}

// GormLogger routes GORM logs to zap. Statements carry the correlation
// fields of their context, so a query issued while a saga handles an event
// is logged with its procman_id and event_id.
type GormLogger struct {
	logger *zap.Logger
	cfg    GormConfig
}

// NewGormLogger creates a GORM logger backed by l
func NewGormLogger(l *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{logger: l, cfg: cfg}
}

// GormLevel maps an application log level onto GORM's levels. debug and
// info log every statement; anything unknown falls back to warn.
func GormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Info, msg, args)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Warn, msg, args)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Error, msg, args)
}

func (l *GormLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, args []any) {
	if l.cfg.Level < level {
		return
	}
	s := l.logger.With(Fields(ctx)...).Sugar()
	switch level {
	case gormlogger.Error:
		s.Errorf(msg, args...)
	case gormlogger.Warn:
		s.Warnf(msg, args...)
	default:
		s.Infof(msg, args...)
	}
}

// Trace logs one executed statement: failures at error, statements slower
// than the threshold at warn, everything else at debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold

	var write func(string, ...zap.Field)
	var msg string
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.cfg.LogNotFound {
			return
		}
		write, msg = l.logger.Error, "sql failed"
	case slow && l.cfg.Level >= gormlogger.Warn:
		write, msg = l.logger.Warn, "slow sql"
	case l.cfg.Level >= gormlogger.Info:
		write, msg = l.logger.Debug, "sql"
	default:
		return
	}

	query, rows := fc()
	fields := append(Fields(ctx),
		zap.String("sql", query),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.cfg.SlowThreshold))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	write(msg, fields...)
}

var _ gormlogger.Interface = (*GormLogger)(nil)

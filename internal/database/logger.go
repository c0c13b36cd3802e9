package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// loggerFrom prefers a logger attached to ctx (zerolog.Ctx) and falls back to
// the global logger.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}

// gormLogger adapts gorm's logger interface to zerolog and feeds the query
// metrics. Record-not-found is not treated as an error.
type gormLogger struct {
	base          zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(base zerolog.Logger, slow time.Duration) gormlogger.Interface {
	return &gormLogger{
		base:          base.With().Str("component", "gorm").Logger(),
		level:         gormlogger.Warn,
		slowThreshold: slow,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.base.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.base.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.base.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace is called by gorm after every statement.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	observeQuery(InferOperation(sql), elapsed, failed)

	if l.level <= gormlogger.Silent {
		return
	}
	switch {
	case failed && l.level >= gormlogger.Error:
		l.base.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query error")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.base.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level >= gormlogger.Info:
		l.base.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}

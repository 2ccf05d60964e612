package logx

import (
	"context"
	"log/slog"
	"time"
)

// SlogAdapter backs Logger with a *slog.Logger.
type SlogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter returns a Logger writing through l.
func NewSlogAdapter(l *slog.Logger) Logger {
	return &SlogAdapter{l: l}
}

func (s *SlogAdapter) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, toAttrs(fields)...)
}

// Debug logs at debug level.
func (s *SlogAdapter) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }

// Info logs at info level.
func (s *SlogAdapter) Info(msg string, fields ...Field) { s.log(slog.LevelInfo, msg, fields) }

// Warn logs at warn level.
func (s *SlogAdapter) Warn(msg string, fields ...Field) { s.log(slog.LevelWarn, msg, fields) }

// Error logs at error level.
func (s *SlogAdapter) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

// With returns a logger that adds fields to every line.
func (s *SlogAdapter) With(fields ...Field) Logger {
	attrs := toAttrs(fields)
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &SlogAdapter{l: s.l.With(args...)}
}

// Sync is a no-op: slog handlers write synchronously.
func (s *SlogAdapter) Sync() error { return nil }

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, toAttr(f))
	}
	return attrs
}

func toAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	case error:
		return slog.String(f.Key, v.Error())
	}
	return slog.Any(f.Key, f.Value)
}

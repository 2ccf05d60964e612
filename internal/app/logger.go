package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"service-dispatch/internal/config"
	"service-dispatch/internal/logx"
)

// NewLogger builds the JSON logger. With a log file set, lines go to stdout
// and to a rotated file.
func NewLogger(cfg config.Log) logx.Logger {
	return newLoggerTo(os.Stdout, cfg)
}

func newLoggerTo(stdout io.Writer, cfg config.Log) logx.Logger {
	var out io.Writer = stdout
	if cfg.File != "" {
		out = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}
	base := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}))
	return logx.NewSlogAdapter(base)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

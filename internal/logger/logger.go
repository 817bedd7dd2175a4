// Package logger builds the process-wide slog logger
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jzx17/calcpool/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger for cfg. Output goes to stdout, or to a rotating file
// when cfg.File is set. The returned LevelVar changes the level at runtime;
// the closer releases the log file.
func New(cfg config.Log) (*slog.Logger, *slog.LevelVar, io.Closer) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = rotating, rotating
	}

	level := &slog.LevelVar{}
	level.Set(cfg.SlogLevel())

	return NewWithWriter(out, cfg.JSON, level), level, closer
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, json bool, level slog.Leveler) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}

	if json {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}

	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

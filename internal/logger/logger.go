// Package logger builds the slog loggers used by the CLI and the HTTP service.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	json   bool
	pretty bool
	source bool
	writer io.Writer
}

// New creates a logger. Without options it writes human-readable text to stderr at info level.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.json:
		return slog.New(slog.NewJSONHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	case c.pretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}
		return slog.New(charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    c.source,
			TimeFormat:      time.TimeOnly,
		}))
	default:
		return slog.New(slog.NewTextHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// FromSettings maps the LOG_LEVEL / LOG_FORMAT values onto options.
// Unknown formats fall back to pretty output.
func FromSettings(level, format string) *slog.Logger {
	opts := []Option{WithDebug(strings.EqualFold(level, "debug"))}
	switch strings.ToLower(format) {
	case "json":
		opts = append(opts, WithJSON(true))
	case "text":
	default:
		opts = append(opts, WithPretty(true))
	}
	return New(opts...)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

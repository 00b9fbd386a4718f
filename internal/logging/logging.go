// Package logging builds the process-wide slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/GoCodeAlone/taskflow/config"
)

// New returns a logger writing to w. Format "json" uses slog's JSON handler;
// "logfmt" and the default "text" use charmbracelet/log.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "logfmt":
		return slog.New(charmHandler(w, level, log.LogfmtFormatter))
	default:
		return slog.New(charmHandler(w, level, log.TextFormatter))
	}
}

func charmHandler(w io.Writer, level slog.Level, f log.Formatter) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           log.Level(level),
		Formatter:       f,
		ReportTimestamp: true,
		Prefix:          "taskflow",
	})
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

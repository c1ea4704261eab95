// Package logging builds the structured slog logger shared by engine components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the minimum level and output format.
type Config struct {
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a logger. LOG_LEVEL and LOG_FORMAT override the configured values.
func New(cfg Config) *slog.Logger {
	level := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	format := cfg.Format
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}

	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("component", "survey-engine"))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

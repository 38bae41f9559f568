package config

import (
	"io"
	"log/slog"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  slog.Level
	Format string // json | text; empty lets the binary choose
}

// NewLogger builds a logger writing to w. fallback is the format used when
// none is configured.
func (c LogConfig) NewLogger(w io.Writer, fallback string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level}
	format := c.Format
	if format == "" {
		format = fallback
	}
	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

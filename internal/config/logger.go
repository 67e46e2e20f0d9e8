package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON output at info level in
// production, human-readable text at debug level everywhere else.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: c.IsDevelopment(),
	}

	var handler slog.Handler
	if c.IsProduction() {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Package log sets up structured logging and the HTTP request log middleware.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text slog handler as the process default and returns it.
func Setup(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to use JSON output at the given level.
func SetupJSON(level slog.Level) *slog.Logger {
	return SetupJSONTo(os.Stdout, level)
}

// SetupJSONTo is SetupJSON writing to w.
func SetupJSONTo(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	).With("service", "botledger")
	slog.SetDefault(logger)

	return logger
}

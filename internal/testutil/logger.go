package testutil

import (
	"io"
	"log/slog"
)

// QuietLogger discards everything below error and all output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it through their
// WithLogger option so tests can swap in a discarding handler.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

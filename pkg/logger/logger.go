package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process logger. Debug is noisy: it logs every transfer
// and a per-tick session dump.
func Setup(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

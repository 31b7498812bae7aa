// Package logging wires the engine's slog pipeline: JSON on stdout plus an
// async Postgres sink for ERROR records, so failed reconcile attempts are
// queryable next to the data they touched.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the global JSON logger on stdout. Once the database is up,
// main wraps the same stdout handler in a MultiHandler so ERROR records also
// land in sync_logs; until then stdout is the only sink.
func Setup() {
	slog.SetDefault(slog.New(StdoutHandler()))
}

// StdoutHandler returns the JSON stdout handler at the configured threshold.
func StdoutHandler() slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
}

// levelFromEnv reads LOG_LEVEL. Reconcilers log one line per run at info and
// per-record failures at error, so info is the default threshold.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

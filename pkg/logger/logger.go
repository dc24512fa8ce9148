// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New returns an slog.Logger backed by a charmbracelet handler. Debug
// enables debug-level output and caller reporting.
func New(debug bool) *slog.Logger {
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}
	if debug {
		opts.Level = charmlog.DebugLevel
		opts.ReportCaller = true
	}
	handler := charmlog.NewWithOptions(os.Stderr, opts)
	return slog.New(handler)
}

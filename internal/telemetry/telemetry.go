// Package telemetry is the ambient logging/tracing setup consumed by
// cmd/dcdownload and by family drivers via dc.Context: a log/slog logger
// constructed the way the teacher constructs its own (text handler to
// stderr), plus optional raw-transport capture export and MQTT event
// mirroring for a host UI to subscribe to.
package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the slog.Logger every dc.Context is constructed with.
// verbose selects slog.LevelDebug over the default slog.LevelInfo, mirroring
// the teacher's own `-v` flag handling in bluetooth.go.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

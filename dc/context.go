package dc

import (
	"log/slog"
	"sync/atomic"
)

// Context is the borrowed capability every driver/parser method receives in
// place of the C source's per-invocation context pointer: a logger and a
// cancellation flag. It carries no transport or device state of its own.
type Context struct {
	Logger    *slog.Logger
	cancelled atomic.Bool
}

// NewContext returns a Context logging to logger. A nil logger falls back
// to slog.Default(), matching the teacher's own fallback-free use of
// log/slog throughout bluetooth.go.
func NewContext(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{Logger: logger}
}

// Cancel requests that the next packet boundary abort the operation in
// progress with KindCancelled. It does not interrupt a write already in
// flight.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (c *Context) Cancelled() bool {
	return c.cancelled.Load()
}

// Reset clears the cancellation flag, allowing a Context to be reused
// across a subsequent Open/Foreach cycle.
func (c *Context) Reset() {
	c.cancelled.Store(false)
}

// Trace logs at debug level, mirroring the teacher's own d.trace(...) calls
// throughout bluetooth.go.
func (c *Context) Trace(msg string, args ...any) {
	c.Logger.Debug(msg, args...)
}

// Info logs a notable but non-exceptional event, such as which of several
// probed addresses or options a driver settled on.
func (c *Context) Info(msg string, args ...any) {
	c.Logger.Info(msg, args...)
}

// Warn logs a recoverable anomaly that does not abort the current operation.
func (c *Context) Warn(msg string, args ...any) {
	c.Logger.Warn(msg, args...)
}

// Errorf logs an anomaly alongside the error that is about to be returned to
// the caller.
func (c *Context) Errorf(msg string, args ...any) {
	c.Logger.Error(msg, args...)
}

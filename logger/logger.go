package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record.
// Enabled reports false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so SetLogger may race
// with logging from the frame loop or from bounding-box workers.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs the logger used by every oxy-draw package.
// By default nothing is logged. Passing nil restores the silent default.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame diagnostics (dispatch sizes, plane uploads)
//   - [slog.LevelInfo]: buffer reallocations, culling epoch flips, adapter selection
//   - [slog.LevelWarn]: skipped frames and configuration reload failures
//   - [slog.LevelError]: configuration errors that abort a frame
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the active logger. It never returns nil.
//
// Returns:
//   - *slog.Logger: the current logger
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Component returns the active logger tagged with a component attribute.
//
// Parameters:
//   - name: the component name attached as the "component" attribute
//
// Returns:
//   - *slog.Logger: a child logger carrying the component attribute
func Component(name string) *slog.Logger {
	return loggerPtr.Load().With(slog.String("component", name))
}

package vkg

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by vkg. By default nothing is logged.
// Passing nil restores the silent default.
//
// Levels used:
//   - Debug: barriers, pipeline state, per-frame statistics
//   - Info: device selection, swapchain rebuilds, pipeline builds
//   - Warn: validation layer warnings, discarded pipeline caches
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current vkg logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

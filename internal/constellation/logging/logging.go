// Package logging builds the structured slog.Logger every ConstellationFS
// component is handed at construction time. It is grounded on the teacher's
// internal/logging package: a redacting handler feeds a text or JSON sink,
// and multiple sinks are fanned out through a MultiHandler
// (internal/logging/multihandler.go, internal/logging/redactor.go).
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// New builds the default ConstellationFS logger: a redacting handler
// wrapping a text handler on w. debug raises the level to slog.LevelDebug
// and is what CONSTELLATION_DEBUG_LOGGING=true (spec §6) controls.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(base))
}

// NewMulti fans a single log record out to every handler whose level
// threshold the record clears, aggregating any per-handler errors.
// Grounded on internal/logging/multihandler.go.
func NewMulti(handlers ...slog.Handler) slog.Handler {
	return &multiHandler{handlers: handlers}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}
	return errs
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// IsPrintable reports whether b is safe to include verbatim in a log line:
// every byte is ASCII and either printable or common whitespace. Used to
// binary-safe-filter captured command output before logging it (spec §4.6
// "log-filter binary data (print only if ASCII-and-whitespace)").
func IsPrintable(b []byte) bool {
	for _, c := range b {
		if c == '\n' || c == '\t' || c == '\r' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Package audit records one structured log line per exec/file operation
// passed to Record or Track (SPEC_FULL.md D1), grounded on the ULID-stamped
// privileged-execution logging in the teacher's audit logger. Unlike the
// teacher's audit trail (privileged commands only), it applies no privilege
// filter — ConstellationFS has no privilege-escalation concept to scope it
// down to. No executor, router or tool-server code calls this package, so
// operations are logged only where a caller wraps them with Track.
package audit

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is one audited operation (SPEC_FULL.md D1 field list).
type Entry struct {
	OpID      string
	User      string
	Workspace string
	Backend   string
	Subject   string // command or path
	Duration  time.Duration
	Outcome   string // "ok" or an error code/message
}

// Logger records audit entries through an injected *slog.Logger (spec A1
// "every component logs through an injected *slog.Logger field").
type Logger struct {
	logger *slog.Logger
	source ulid.MonotonicReader
}

// New builds an audit Logger. entropy may be nil, in which case a
// time-seeded monotonic ULID source is used (grounded on
// github.com/oklog/ulid/v2's documented monotonic-entropy pattern).
func New(logger *slog.Logger, entropy ulid.MonotonicReader) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, source: entropy}
}

// NewOpID mints a new ULID-based operation id.
func (l *Logger) NewOpID() string {
	if l.source != nil {
		return ulid.MustNew(ulid.Timestamp(time.Now()), l.source).String()
	}
	return ulid.Make().String()
}

// Record logs one completed operation at Info (outcome "ok") or Warn
// (anything else), per SPEC_FULL.md D1's field list.
func (l *Logger) Record(e Entry) {
	args := []any{
		"op_id", e.OpID,
		"user", e.User,
		"workspace", e.Workspace,
		"backend", e.Backend,
		"subject", e.Subject,
		"duration_ms", e.Duration.Milliseconds(),
		"outcome", e.Outcome,
	}
	if e.Outcome == "ok" {
		l.logger.Info("operation", args...)
		return
	}
	l.logger.Warn("operation", args...)
}

// Track wraps fn, timing it and recording an Entry built from the given
// identifying fields and fn's returned error (nil → "ok").
func (l *Logger) Track(user, workspace, backend, subject string, fn func() error) error {
	start := time.Now()
	opID := l.NewOpID()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	l.Record(Entry{
		OpID: opID, User: user, Workspace: workspace, Backend: backend,
		Subject: subject, Duration: time.Since(start), Outcome: outcome,
	})
	return err
}

package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// redactionPatterns match attribute keys or string values that must never
// reach a log sink in cleartext: passwords, private key material, bearer
// tokens, and passphrases. Adapted from the teacher's
// internal/logging/redactor.go CredentialPatterns, narrowed to the secrets
// ConstellationFS actually handles (SSH password/key/passphrase, bearer
// auth token) rather than the teacher's cloud-credential-env-var list.
var redactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passphrase|secret|private_?key|bearer|auth_?token)`),
}

// RedactingHandler decorates a slog.Handler, replacing any attribute whose
// key or string value matches a credential pattern with "***" before
// forwarding the record. Grounded on internal/logging/redactor.go.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next with credential redaction.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled reports whether the wrapped handler handles level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle redacts every attribute of r and forwards the result.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

// WithAttrs redacts attrs up front, matching the teacher's eager-redaction
// behavior for bound loggers (e.g. logger.With("password", p)).
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.redact(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(out)}
}

// WithGroup forwards group scoping unchanged.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	for _, pattern := range redactionPatterns {
		if pattern.MatchString(a.Key) {
			return slog.String(a.Key, "***")
		}
	}
	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		for _, pattern := range redactionPatterns {
			if pattern.MatchString(v) {
				return slog.String(a.Key, "***")
			}
		}
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = h.redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// ScrubForLog returns s unchanged if it looks like safe diagnostic text, or
// a placeholder describing its length if it contains characters that
// shouldn't be echoed verbatim (binary payloads). Complements IsPrintable
// for call sites that want a ready-to-log string rather than a bool.
func ScrubForLog(s string) string {
	if IsPrintable([]byte(s)) {
		return s
	}
	return "<binary " + itoa(len(s)) + " bytes>"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return strings.TrimSpace(string(digits))
}

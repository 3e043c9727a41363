// Package log provides the slog plumbing of the ntlm-login command: a
// handler that keeps secrets out of log sinks and a size-rotated log file.
package log

import (
	"context"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys are matched as case-insensitive substrings of attribute keys.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"authorization",
	"authenticate",
	"cookie",
	"cred",
	"hash",
}

// tokenSchemes prefix header values that carry authentication material.
var tokenSchemes = []string{"ntlm ", "negotiate ", "basic ", "bearer "}

// RedactingHandler is a slog.Handler that replaces sensitive attribute
// values before they reach the wrapped handler.
//
// An attribute is redacted when its key names a secret, or when its value
// is an authentication header value such as "NTLM TlRMTVNT...".
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	// LogValuers (credentials among them) are expanded first so their
	// fields are inspected too.
	a.Value = a.Value.Resolve()

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		clean := make([]any, len(attrs))
		for i, attr := range attrs {
			clean[i] = redactAttr(attr)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindString:
		if isTokenValue(a.Value.String()) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func isTokenValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, scheme := range tokenSchemes {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	return false
}

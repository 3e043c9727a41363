package login

import (
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// NIST SP 800-92 compliant event types
const (
	EventAuthentication = "authentication"
	EventConnection     = "connection"
)

// Security event subtypes
const (
	SubtypeConnFailed  = "failed"
	SubtypeAuthAttempt = "attempt"
	SubtypeAuthSuccess = "success"
	SubtypeAuthFailure = "failure"
)

// Security event outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
	OutcomeAttempt = "attempt"
)

// Security event severities
const (
	SeverityDebug   = "DEBUG"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// SecurityEvent represents a structured security log event compliant with NIST SP 800-92.
type SecurityEvent struct {
	Timestamp string `json:"timestamp"`  // ISO 8601 UTC
	EventType string `json:"event_type"` // authentication, connection
	Subtype   string `json:"subtype"`    // attempt, success, failure
	Severity  string `json:"severity"`

	User          string `json:"user,omitempty"`
	Source        string `json:"source"`
	Target        string `json:"target"`         // redacted login URL
	CorrelationID string `json:"correlation_id"` // one per login call

	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
}

// String returns the JSON representation of the event.
func (e *SecurityEvent) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// securityLogger writes the security events of one login call.
type securityLogger struct {
	logger        *slog.Logger
	user          string
	target        string
	correlationID string
}

// newSecurityLogger generates a correlation id for the call.
func newSecurityLogger(logger *slog.Logger, user, target string) *securityLogger {
	return &securityLogger{
		logger:        logger,
		user:          user,
		target:        target,
		correlationID: uuid.New().String(),
	}
}

func (l *securityLogger) log(eventType, subtype, severity, outcome string, details map[string]any) {
	if l.logger == nil {
		return
	}

	event := &SecurityEvent{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EventType:     eventType,
		Subtype:       subtype,
		Severity:      severity,
		User:          l.user,
		Source:        "go-ntlmlogin",
		Target:        l.target,
		CorrelationID: l.correlationID,
		Outcome:       outcome,
		Details:       details,
	}

	switch severity {
	case SeverityDebug:
		l.logger.Debug("SecurityEvent", "event", event)
	case SeverityWarning:
		l.logger.Warn("SecurityEvent", "event", event)
	case SeverityError:
		l.logger.Error("SecurityEvent", "event", event)
	default:
		l.logger.Info("SecurityEvent", "event", event)
	}
}

func (l *securityLogger) authentication(subtype, outcome, severity string, details map[string]any) {
	l.log(EventAuthentication, subtype, severity, outcome, details)
}

func (l *securityLogger) connection(subtype, outcome, severity string, details map[string]any) {
	l.log(EventConnection, subtype, severity, outcome, details)
}

package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is the sentinel all *ProtocolError values unwrap to.
	ErrProtocol = errors.New("auth: ntlm protocol error")

	// ErrConnectionAffinity is returned when a handshake leg was not sent on
	// the connection that received the preceding challenge.
	ErrConnectionAffinity = errors.New("auth: handshake leg sent on a different connection")
)

// ProtocolError reports a malformed or unsupported server challenge.
type ProtocolError struct {
	Reason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "auth: invalid ntlm challenge: " + e.Reason
}

// Unwrap lets errors.Is match ErrProtocol.
func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

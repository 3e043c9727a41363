package login

import (
	"errors"
	"net"
	"syscall"
)

// Failure tokens delivered by a Future. The messages are part of the
// public contract.
var (
	ErrNoInternetConnection      = errors.New("NO_INTERNET_CONNECTION_ERROR_MESSAGE")
	ErrInvalidUsernameOrPassword = errors.New("INVALID_USERNAME_OR_PASSWORD_ERROR_MESSAGE")
)

// FailureKind classifies the error delivered by a Future.
type FailureKind int

const (
	// FailureNone means the call succeeded.
	FailureNone FailureKind = iota
	// FailureNoConnectivity means the host could not be resolved or reached.
	FailureNoConnectivity
	// FailureInvalidCredentials means the server rejected the handshake.
	FailureInvalidCredentials
	// FailureOther covers every other transport or decoding error.
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "None"
	case FailureNoConnectivity:
		return "NoConnectivity"
	case FailureInvalidCredentials:
		return "InvalidCredentials"
	case FailureOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Classify returns the kind of an error delivered by a Future.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidUsernameOrPassword):
		return FailureInvalidCredentials
	case errors.Is(err, ErrNoInternetConnection):
		return FailureNoConnectivity
	default:
		return FailureOther
	}
}

// classify maps the outcome of a call to the error delivered to the
// caller. Rejected credentials win over the transport error, since servers
// often drop the connection after a failed handshake.
func classify(err error, invalidCredentials bool) error {
	if invalidCredentials {
		return ErrInvalidUsernameOrPassword
	}
	if err == nil {
		return nil
	}
	if isNoConnectivity(err) {
		return ErrNoInternetConnection
	}
	return err
}

// isNoConnectivity reports whether err means the host could not be
// resolved or no route to it exists.
func isNoConnectivity(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH)
}

package auth

import (
	"errors"
	"log/slog"
	"strings"
)

// Credentials holds the username/password pair for one login call.
// The zero value is not usable; construct with NewCredentials.
type Credentials struct {
	username string
	password string
}

// NewCredentials creates an immutable credential pair. The username may be
// a plain account name, DOMAIN\user or a UPN (user@domain).
func NewCredentials(username, password string) Credentials {
	return Credentials{username: username, password: password}
}

// Username returns the username as supplied by the caller.
func (c Credentials) Username() string {
	return c.username
}

// Password returns the password.
func (c Credentials) Password() string {
	return c.password
}

// Domain splits the username into account and domain parts, the way the
// authenticate message carries them. domainNeeded is false for UPN
// usernames, where the domain is already part of the account name.
// The codecs take the unsplit Username; Domain is for logging.
func (c Credentials) Domain() (user, domain string, domainNeeded bool) {
	if d, u, ok := strings.Cut(c.username, `\`); ok {
		return u, d, true
	}
	return c.username, "", !strings.Contains(c.username, "@")
}

// Validate checks that required credential fields are populated.
func (c Credentials) Validate() error {
	if c.username == "" {
		return errors.New("username is required")
	}
	if c.password == "" {
		return errors.New("password is required")
	}
	return nil
}

// LogValue implements slog.LogValuer so the password never reaches a log sink.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.username),
		slog.String("password", "[REDACTED]"),
	)
}

// String implements fmt.Stringer with the password masked.
func (c Credentials) String() string {
	return c.username + ":********"
}

package login

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/smnsjas/go-ntlmlogin/transport"
)

// Config configures a Client.
type Config struct {
	// ConnectTimeout bounds establishing a connection, TLS included.
	ConnectTimeout time.Duration

	// ReadTimeout bounds every read from the connection.
	ReadTimeout time.Duration

	// WriteTimeout bounds every write to the connection.
	WriteTimeout time.Duration

	// MaxRedirects is the number of redirects followed (default: 10).
	MaxRedirects int

	// Workstation is the NTLM workstation name (default: empty).
	Workstation string

	// ChannelBinding binds the handshake to the server certificate over
	// TLS (Extended Protection for Authentication).
	ChannelBinding bool

	// InsecureSkipVerify skips TLS certificate verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool

	// TLSConfig overrides the TLS client configuration.
	TLSConfig *tls.Config

	// Proxy selects the proxy per request (default: from environment).
	Proxy func(*http.Request) (*url.URL, error)

	// Logger receives diagnostics and security events. Nil discards them.
	Logger *slog.Logger

	// BaseTransport replaces the dialing transport. Intended for tests.
	BaseTransport http.RoundTripper
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: transport.DefaultTimeout,
		ReadTimeout:    transport.DefaultTimeout,
		WriteTimeout:   transport.DefaultTimeout,
		MaxRedirects:   transport.DefaultMaxRedirects,
		Proxy:          http.ProxyFromEnvironment,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.MaxRedirects < 0 {
		return errors.New("max redirects must not be negative")
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// transportOptions translates the config into transport options.
func (c *Config) transportOptions() []transport.HTTPTransportOption {
	opts := []transport.HTTPTransportOption{
		transport.WithTimeouts(transport.Timeouts{
			Connect: c.ConnectTimeout,
			Read:    c.ReadTimeout,
			Write:   c.WriteTimeout,
		}),
		transport.WithMaxRedirects(c.MaxRedirects),
		transport.WithProxy(c.Proxy),
		transport.WithLogger(c.logger()),
	}
	if c.TLSConfig != nil {
		opts = append(opts, transport.WithTLSConfig(c.TLSConfig))
	}
	if c.InsecureSkipVerify {
		opts = append(opts, transport.WithInsecureSkipVerify(true))
	}
	if c.BaseTransport != nil {
		opts = append(opts, transport.WithBaseTransport(c.BaseTransport))
	}
	return opts
}

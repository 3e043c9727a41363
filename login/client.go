package login

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/smnsjas/go-ntlmlogin/auth"
	"github.com/smnsjas/go-ntlmlogin/transport"
	"github.com/smnsjas/go-ntlmlogin/value"
)

// Response is the normalized result of a successful call.
type Response struct {
	Status int `json:"status"`

	// Headers holds the first value of each response header, keyed by the
	// lowercase header name.
	Headers map[string]string `json:"headers"`

	// Body is a mapping or sequence for JSON responses, a string for other
	// content and the empty mapping for a blank body.
	Body value.Value `json:"body"`
}

// Client performs login calls. It holds configuration only; every call
// builds its own HTTP client and handshake state.
type Client struct {
	config Config
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: cfg}, nil
}

// Login performs a login call with DefaultConfig.
func Login(rawURL, username, password string, headers map[string]string, body value.Value) *Future {
	c := &Client{config: DefaultConfig()}
	return c.Login(rawURL, username, password, headers, body)
}

// Login POSTs body to rawURL, completing an NTLM handshake when the server
// asks for one. It returns immediately; the result is delivered through the
// Future.
//
// The Future fails with ErrInvalidUsernameOrPassword when the server
// rejected the handshake, with ErrNoInternetConnection when the host could
// not be resolved or reached, and with the transport error otherwise.
func (c *Client) Login(rawURL, username, password string, headers map[string]string, body value.Value) *Future {
	f := newFuture()
	go func() {
		resp, err := c.do(context.Background(), rawURL, username, password, headers, body)
		if err != nil {
			f.reject(err)
			return
		}
		f.resolve(resp)
	}()
	return f
}

func (c *Client) do(ctx context.Context, rawURL, username, password string, headers map[string]string, body value.Value) (*Response, error) {
	logger := c.config.logger()
	sec := newSecurityLogger(logger, username, redactURL(rawURL))

	payload, err := value.EncodeBody(body)
	if err != nil {
		return nil, err
	}

	creds := auth.NewCredentials(username, password)
	authn := auth.NewChallengeAuthenticator(creds, auth.NTLMCodec{},
		auth.WithWorkstation(c.config.Workstation),
		auth.WithChannelBinding(c.config.ChannelBinding),
		auth.WithLogger(logger.With("correlation_id", sec.correlationID)),
	)

	opts := append(c.config.transportOptions(),
		transport.WithHeaders(transport.HeadersFromMap(headers)),
		transport.WithAuthenticator(func(next http.RoundTripper) http.RoundTripper {
			return auth.NewTransport(next, authn)
		}),
	)
	tr := transport.NewHTTPTransport(opts...)
	defer tr.CloseIdleConnections()

	logger.Debug("login request",
		"url", redactURL(rawURL),
		"credentials", creds,
		"body_bytes", len(payload))
	sec.authentication(SubtypeAuthAttempt, OutcomeAttempt, SeverityDebug, map[string]any{"scheme": auth.SchemeNTLM})

	resp, err := tr.Post(ctx, rawURL, payload, transport.ContentTypeJSON)
	state := authn.State()

	if err := classify(err, state.InvalidCredentials); err != nil {
		c.logFailure(sec, err, state)
		return nil, err
	}

	decoded, err := value.DecodeBody(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return nil, err
	}

	if state.Attempts > 0 {
		sec.authentication(SubtypeAuthSuccess, OutcomeSuccess, SeverityDebug, map[string]any{
			"attempts": state.Attempts,
			"status":   resp.StatusCode,
		})
	}
	return &Response{
		Status:  resp.StatusCode,
		Headers: firstValues(resp.Header),
		Body:    decoded,
	}, nil
}

func (c *Client) logFailure(sec *securityLogger, err error, state auth.HandshakeState) {
	switch Classify(err) {
	case FailureInvalidCredentials:
		details := map[string]any{"attempts": state.Attempts}
		if state.Err != nil {
			details["reason"] = state.Err.Error()
		}
		sec.authentication(SubtypeAuthFailure, OutcomeDenied, SeverityWarning, details)
	case FailureNoConnectivity:
		sec.connection(SubtypeConnFailed, OutcomeFailure, SeverityError, map[string]any{"error": "host unreachable"})
	default:
		sec.connection(SubtypeConnFailed, OutcomeFailure, SeverityError, map[string]any{
			"error":          err.Error(),
			"handshake_step": state.Step.String(),
		})
	}
}

// firstValues flattens h to its first value per header, under the
// lowercase header name.
func firstValues(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = vs[0]
	}
	return out
}

// redactURL strips user info and the query string from rawURL for logging.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

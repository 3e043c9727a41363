package auth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// MaxAttempts bounds the number of handshake legs for one call.
const MaxAttempts = 2

// Step is the position of a call in the handshake.
type Step int

const (
	// StepInit means no challenge has been answered yet.
	StepInit Step = iota
	// StepNegotiateSent means the negotiate token was attached.
	StepNegotiateSent
	// StepChallengeAnswered means the authenticate token was attached.
	StepChallengeAnswered
	// StepFailed means the handshake gave up. No further legs are sent.
	StepFailed
	// StepComplete means the server answered a handshake leg with a
	// non-challenge status.
	StepComplete
)

// String returns the string representation of the step.
func (s Step) String() string {
	switch s {
	case StepInit:
		return "Init"
	case StepNegotiateSent:
		return "NegotiateSent"
	case StepChallengeAnswered:
		return "ChallengeAnswered"
	case StepFailed:
		return "Failed"
	case StepComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// HandshakeState is the per-call handshake record. It is mutated only by
// its ChallengeAuthenticator.
type HandshakeState struct {
	Step               Step
	Attempts           int
	InvalidCredentials bool

	// Err is the reason the handshake failed, if any.
	Err error

	scheme  string
	headers challengeHeaders
}

// Option configures a ChallengeAuthenticator.
type Option func(*ChallengeAuthenticator)

// WithWorkstation sets the workstation name announced by the default codecs.
func WithWorkstation(name string) Option {
	return func(a *ChallengeAuthenticator) {
		a.workstation = name
		if _, ok := a.codec.(NTLMCodec); ok {
			a.codec = NTLMCodec{Workstation: name}
		}
	}
}

// WithChannelBinding binds the handshake to the server certificate when the
// challenge arrives over TLS.
func WithChannelBinding(enabled bool) Option {
	return func(a *ChallengeAuthenticator) {
		a.channelBinding = enabled
	}
}

// WithLogger sets the logger used for handshake diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *ChallengeAuthenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// ChallengeAuthenticator decides, for each 401/407 received by one call,
// whether to retry with a new handshake header or to give up.
//
// An authenticator serves a single login call. The transport invokes it
// serially; the mutex only makes State safe to read from another goroutine.
type ChallengeAuthenticator struct {
	mu    sync.Mutex
	state HandshakeState

	creds          Credentials
	codec          HandshakeCodec
	workstation    string
	channelBinding bool
	logger         *slog.Logger
}

// NewChallengeAuthenticator creates an authenticator for one call. A nil
// codec selects NTLMCodec.
func NewChallengeAuthenticator(creds Credentials, codec HandshakeCodec, opts ...Option) *ChallengeAuthenticator {
	if codec == nil {
		codec = NTLMCodec{}
	}
	a := &ChallengeAuthenticator{
		creds:  creds,
		codec:  codec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns a snapshot of the handshake state.
func (a *ChallengeAuthenticator) State() HandshakeState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// InvalidCredentials reports whether the server rejected the credentials.
func (a *ChallengeAuthenticator) InvalidCredentials() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.InvalidCredentials
}

// Authenticate is called with every 401/407 response. It returns the request
// for the next handshake leg, or nil when the response must be surfaced to
// the caller as is. A non-nil error aborts the call.
//
// The returned request is a clone of resp.Request with a fresh body and the
// handshake header set; resp is left untouched.
func (a *ChallengeAuthenticator) Authenticate(resp *http.Response) (*http.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.state

	if s.Step == StepFailed || s.Step == StepComplete {
		return nil, nil
	}
	if s.Attempts >= MaxAttempts {
		a.fail(true, nil)
		a.logger.Debug("ntlm handshake rejected", "attempts", s.Attempts, "status", resp.StatusCode)
		return nil, nil
	}

	hdrs := headersFor(resp.StatusCode)
	switch s.Step {
	case StepInit:
		offered := newAuthHeader(resp.Header, hdrs.challenge)
		s.scheme = offered.schema
		if s.scheme == "" {
			s.scheme = SchemeNTLM
		}
		s.headers = hdrs
		if a.channelBinding && resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
			a.codec = newChannelBindingCodec(resp.TLS.PeerCertificates[0], a.workstation)
		}

		token, err := a.codec.NegotiateToken(a.creds)
		if err != nil {
			a.fail(false, err)
			return nil, fmt.Errorf("auth: build negotiate token: %w", err)
		}
		next, err := a.nextRequest(resp, formatAuthorization(s.scheme, token))
		if err != nil {
			a.fail(false, err)
			return nil, err
		}
		s.Step = StepNegotiateSent
		s.Attempts++
		a.logger.Debug("ntlm negotiate sent", "scheme", s.scheme, "header", hdrs.authorization, "attempt", s.Attempts)
		return next, nil

	case StepNegotiateSent:
		offered := newAuthHeader(resp.Header, hdrs.challenge)
		challenge, err := offered.token()
		switch {
		case err != nil:
			return a.reject(protocolErrorf("challenge token is not base64: %v", err))
		case len(challenge) == 0:
			return a.reject(protocolErrorf("no challenge token in %s", hdrs.challenge))
		}

		_, domain, _ := a.creds.Domain()
		a.logger.Debug("ntlm challenge received", "domain", domain, "challenge_bytes", len(challenge))
		token, err := a.codec.AuthenticateToken(challenge, a.creds)
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				return a.reject(pe)
			}
			a.fail(false, err)
			return nil, fmt.Errorf("auth: build authenticate token: %w", err)
		}
		next, err := a.nextRequest(resp, formatAuthorization(s.scheme, token))
		if err != nil {
			a.fail(false, err)
			return nil, err
		}
		s.Step = StepChallengeAnswered
		s.Attempts++
		a.logger.Debug("ntlm challenge answered", "scheme", s.scheme, "attempt", s.Attempts)
		return next, nil

	default:
		a.fail(true, nil)
		return nil, nil
	}
}

// Observe records a non-challenge response. A handshake in progress is
// complete once the server stops challenging.
func (a *ChallengeAuthenticator) Observe(resp *http.Response) {
	if IsChallengeStatus(resp.StatusCode) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Step == StepNegotiateSent || a.state.Step == StepChallengeAnswered {
		a.state.Step = StepComplete
		a.logger.Debug("ntlm handshake complete", "status", resp.StatusCode, "attempts", a.state.Attempts)
	}
}

// Abort moves the handshake to Failed without blaming the credentials.
func (a *ChallengeAuthenticator) Abort(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail(false, err)
}

// inProgress reports whether the last request sent was a handshake leg.
func (a *ChallengeAuthenticator) inProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Step == StepNegotiateSent || a.state.Step == StepChallengeAnswered
}

func (a *ChallengeAuthenticator) reject(pe *ProtocolError) (*http.Request, error) {
	a.fail(true, pe)
	a.logger.Debug("ntlm challenge rejected", "reason", pe.Reason)
	return nil, nil
}

func (a *ChallengeAuthenticator) fail(invalidCredentials bool, err error) {
	a.state.Step = StepFailed
	a.state.InvalidCredentials = a.state.InvalidCredentials || invalidCredentials
	if err != nil {
		a.state.Err = err
	}
}

// nextRequest clones the request that produced resp and attaches value as
// the handshake header. Every other header is carried over unchanged.
func (a *ChallengeAuthenticator) nextRequest(resp *http.Response, value string) (*http.Request, error) {
	prev := resp.Request
	if prev == nil {
		return nil, errors.New("auth: challenge response has no request")
	}
	next := prev.Clone(prev.Context())
	if prev.Body != nil && prev.Body != http.NoBody {
		if prev.GetBody == nil {
			return nil, errors.New("auth: request body cannot be replayed")
		}
		body, err := prev.GetBody()
		if err != nil {
			return nil, fmt.Errorf("auth: rewind request body: %w", err)
		}
		next.Body = body
	}
	next.Header.Set(a.state.headers.authorization, value)
	return next, nil
}

// drain discards the rest of a response body so its connection can carry
// the next leg.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

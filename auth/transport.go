package auth

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
)

// Transport is an http.RoundTripper that drives a ChallengeAuthenticator.
// Each handshake leg is checked to have travelled over the connection that
// received the preceding challenge.
type Transport struct {
	base http.RoundTripper
	auth *ChallengeAuthenticator
}

// NewTransport wraps base with the handshake driven by a. A nil base selects
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, a *ChallengeAuthenticator) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, auth: a}
}

// Authenticator returns the authenticator driven by the transport.
func (t *Transport) Authenticator() *ChallengeAuthenticator {
	return t.auth
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt := req.Clone(ctx)
	if err := ensureReplayable(attempt); err != nil {
		return nil, err
	}

	var prevConn net.Conn
	for {
		tracker := &connTracker{}
		traced := attempt.WithContext(httptrace.WithClientTrace(ctx, tracker.trace()))

		resp, err := t.base.RoundTrip(traced)
		if err != nil {
			if t.auth.inProgress() {
				t.auth.Abort(err)
			}
			return nil, err
		}
		if resp.Request == nil {
			resp.Request = traced
		}

		conn := tracker.conn()
		if t.auth.inProgress() && (conn == nil || conn != prevConn) {
			drain(resp)
			t.auth.Abort(ErrConnectionAffinity)
			return nil, ErrConnectionAffinity
		}

		if !IsChallengeStatus(resp.StatusCode) {
			t.auth.Observe(resp)
			return resp, nil
		}

		next, err := t.auth.Authenticate(resp)
		if err != nil {
			drain(resp)
			return nil, err
		}
		if next == nil {
			return resp, nil
		}
		drain(resp)
		prevConn = conn
		attempt = next.WithContext(ctx)
	}
}

// ensureReplayable makes sure the body can be sent once per handshake leg.
func ensureReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("auth: read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}

// connTracker records the connection an attempt was written to.
type connTracker struct {
	mu sync.Mutex
	c  net.Conn
}

func (ct *connTracker) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			ct.mu.Lock()
			ct.c = info.Conn
			ct.mu.Unlock()
		},
	}
}

func (ct *connTracker) conn() net.Conn {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.c
}

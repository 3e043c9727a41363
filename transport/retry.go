package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// retryTransport re-sends a request whose connection failed before a
// response arrived. Status codes are never retried.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	logger     *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt >= t.maxRetries || !isConnectionFailure(err) {
			return resp, err
		}
		if req.Context().Err() != nil {
			return nil, err
		}

		next, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		if t.logger != nil {
			t.logger.Debug("retrying after connection failure",
				"attempt", attempt+1,
				"host", req.URL.Host,
				"error", err.Error())
		}
		req = next
	}
}

// rewind returns a copy of req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("transport: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

// isConnectionFailure reports whether err means the connection broke or
// could not be established. Name resolution failures and caller
// cancellation are final.
func isConnectionFailure(err error) bool {
	if err == nil {
		return false
	}

	// Non-retryable: User cancelled or deadline hit
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Non-retryable: host does not resolve
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTemporary {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Retryable: Connection closed before a response
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	// Fallback: String matching for stdlib network errors
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe")
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
)

// TestIsConnectionFailure verifies which errors trigger a retry.
func TestIsConnectionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"dns", &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}}, false},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"eof", io.EOF, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("whatever")}, true},
		{"string fallback", errors.New("write: broken pipe"), true},
		{"other", errors.New("tls: bad certificate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionFailure(tt.err); got != tt.want {
				t.Errorf("isConnectionFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestRetryTransport verifies a single retry with a replayed body.
func TestRetryTransport(t *testing.T) {
	var bodies []string
	calls := 0
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if calls == 1 {
			return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		}
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})

	tr := NewHTTPTransport(WithBaseTransport(base))
	resp, err := tr.Post(context.Background(), "http://login.example/", []byte("payload"), "")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	for i, b := range bodies {
		if b != "payload" {
			t.Errorf("attempt %d body = %q", i, b)
		}
	}
}

// TestRetryTransport_GivesUp verifies the retry budget and final error.
func TestRetryTransport_GivesUp(t *testing.T) {
	calls := 0
	base := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	})

	tr := NewHTTPTransport(WithBaseTransport(base))
	_, err := tr.Post(context.Background(), "http://login.example/", nil, "")
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("expected ECONNREFUSED, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

// TestRetryTransport_Disabled verifies WithConnectRetries(0).
func TestRetryTransport_Disabled(t *testing.T) {
	calls := 0
	base := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, io.EOF
	})

	tr := NewHTTPTransport(WithBaseTransport(base), WithConnectRetries(0))
	_, err := tr.Post(context.Background(), "http://login.example/", nil, "")
	if err == nil || !strings.Contains(err.Error(), "EOF") {
		t.Errorf("expected EOF, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestNewHTTPTransport verifies transport creation with default settings.
func TestNewHTTPTransport(t *testing.T) {
	tr := NewHTTPTransport()
	if tr == nil {
		t.Fatal("NewHTTPTransport returned nil")
	}
	if tr.client == nil {
		t.Error("client is nil")
	}
	if got := tr.Timeouts(); got != DefaultTimeouts() {
		t.Errorf("got timeouts %+v, want %+v", got, DefaultTimeouts())
	}
	if tr.base.MaxConnsPerHost != 1 {
		t.Errorf("MaxConnsPerHost = %d, want 1", tr.base.MaxConnsPerHost)
	}
	if tr.base.TLSNextProto == nil || len(tr.base.TLSNextProto) != 0 {
		t.Error("HTTP/2 upgrade not disabled")
	}
	if tr.base.ResponseHeaderTimeout != DefaultTimeout {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", tr.base.ResponseHeaderTimeout, DefaultTimeout)
	}
}

// TestHTTPTransport_WithTimeouts verifies partial timeout overrides.
func TestHTTPTransport_WithTimeouts(t *testing.T) {
	tr := NewHTTPTransport(WithTimeouts(Timeouts{Read: 5 * time.Second}))

	got := tr.Timeouts()
	if got.Read != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", got.Read)
	}
	if got.Connect != DefaultTimeout || got.Write != DefaultTimeout {
		t.Errorf("unexpected defaults changed: %+v", got)
	}
	if tr.base.TLSHandshakeTimeout != DefaultTimeout {
		t.Errorf("TLSHandshakeTimeout = %v, want %v", tr.base.TLSHandshakeTimeout, DefaultTimeout)
	}
}

// TestHTTPTransport_WithInsecureSkipVerify verifies TLS skip verify configuration.
func TestHTTPTransport_WithInsecureSkipVerify(t *testing.T) {
	tr := NewHTTPTransport(WithInsecureSkipVerify(true))

	if tr.base.TLSClientConfig == nil {
		t.Fatal("TLSClientConfig is nil")
	}
	if !tr.base.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify is false, want true")
	}
}

// TestHTTPTransport_WithTLSConfig verifies the minimum version is enforced.
func TestHTTPTransport_WithTLSConfig(t *testing.T) {
	tr := NewHTTPTransport(WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS10, ServerName: "login.example"}))

	cfg := tr.base.TLSClientConfig
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.ServerName != "login.example" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
}

// TestHTTPTransport_Post verifies basic request execution.
func TestHTTPTransport_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != ContentTypeJSON {
			t.Errorf("unexpected Content-Type: %s", ct)
		}
		if r.ProtoMajor != 1 {
			t.Errorf("unexpected protocol: %s", r.Proto)
		}

		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("unexpected body: %s", body)
		}

		w.Header().Set("X-Server", "test")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Post(context.Background(), server.URL, []byte(`{"a":1}`), ContentTypeJSON)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if resp.Header.Get("X-Server") != "test" {
		t.Errorf("missing response header")
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("unexpected response: %s", resp.Body)
	}
}

// TestHTTPTransport_Post_ErrorStatus verifies status codes are returned, not failed.
func TestHTTPTransport_Post_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Post(context.Background(), server.URL, nil, "")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || string(resp.Body) != "boom" {
		t.Errorf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
}

// TestHTTPTransport_Post_WithContext verifies context cancellation.
func TestHTTPTransport_Post_WithContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewHTTPTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Post(ctx, server.URL, []byte("{}"), ContentTypeJSON)
	if err == nil {
		t.Error("expected context deadline exceeded error")
	}
}

// TestHTTPTransport_ReadTimeout verifies a stalled server trips the read timeout.
func TestHTTPTransport_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	tr := NewHTTPTransport(WithTimeouts(Timeouts{Read: 50 * time.Millisecond}))
	_, err := tr.Post(context.Background(), server.URL, nil, "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

// TestHTTPTransport_Redirects verifies redirects are followed up to the limit.
func TestHTTPTransport_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/done", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tr := NewHTTPTransport(WithMaxRedirects(3))

	resp, err := tr.Post(context.Background(), server.URL+"/start", []byte("again"), "")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(resp.Body) != "again" {
		t.Errorf("body not replayed on redirect: %q", resp.Body)
	}

	_, err = tr.Post(context.Background(), server.URL+"/loop", nil, "")
	if err == nil || !strings.Contains(err.Error(), "stopped after 3 redirects") {
		t.Errorf("expected redirect limit error, got %v", err)
	}
}

// TestHTTPTransport_WithAuthenticator verifies the wrapper sits above header injection.
func TestHTTPTransport_WithAuthenticator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("X-Tenant") + "|" + r.Header.Get("X-Wrapped")))
	}))
	defer server.Close()

	var seenTenant string
	wrap := func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			seenTenant = req.Header.Get("X-Tenant")
			req = req.Clone(req.Context())
			req.Header.Set("X-Wrapped", "yes")
			return next.RoundTrip(req)
		})
	}

	tr := NewHTTPTransport(
		WithHeaders(Headers{{Name: "X-Tenant", Value: "blue"}}),
		WithAuthenticator(wrap),
	)
	resp, err := tr.Post(context.Background(), server.URL, nil, "")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if seenTenant != "" {
		t.Errorf("wrapper saw injected header %q before injection", seenTenant)
	}
	if string(resp.Body) != "blue|yes" {
		t.Errorf("unexpected response: %s", resp.Body)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

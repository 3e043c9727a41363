package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

const (
	// ContentTypeJSON is the content type of login request bodies.
	ContentTypeJSON = "application/json; charset=utf-8"

	// DefaultTimeout is the default connect, read and write timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirects followed before giving up.
	DefaultMaxRedirects = 10

	// defaultBufferSize is the initial size for pooled buffers.
	defaultBufferSize = 32 * 1024 // 32KB
)

// bufferPool is a pool of reusable bytes.Buffer to reduce allocations.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

// readAllPooled reads from r using a pooled buffer and returns a copy of the data.
func readAllPooled(r io.Reader) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	// Return a copy since buf will be reused
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// Timeouts bounds each phase of a connection.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// DefaultTimeouts returns 30s for every phase.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: DefaultTimeout, Read: DefaultTimeout, Write: DefaultTimeout}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPTransport owns the client of one login call.
type HTTPTransport struct {
	client *http.Client
	base   *http.Transport

	// custom replaces base when set (tests).
	custom http.RoundTripper

	timeouts     Timeouts
	headers      Headers
	maxRedirects int
	maxRetries   int
	wrap         func(http.RoundTripper) http.RoundTripper
	logger       *slog.Logger
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// NewHTTPTransport creates a new HTTP transport with the given options.
//
// The round tripper chain is, outermost first: the wrapper installed with
// WithAuthenticator, header injection, connection-failure retry and the
// dialing transport.
func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		timeouts:     DefaultTimeouts(),
		maxRedirects: DefaultMaxRedirects,
		maxRetries:   1,
		logger:       slog.Default(),
		base: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			// NTLM authenticates the connection: keep it alive, keep it
			// single and keep it HTTP/1.1.
			DisableKeepAlives: false,
			MaxConnsPerHost:   1,
			MaxIdleConns:      1,
			IdleConnTimeout:   90 * time.Second,
			ForceAttemptHTTP2: false,
			TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
		},
	}

	for _, opt := range opts {
		opt(t)
	}

	t.base.DialContext = (&timeoutDialer{
		dialer:   &net.Dialer{Timeout: t.timeouts.Connect, KeepAlive: 30 * time.Second},
		timeouts: t.timeouts,
	}).DialContext
	t.base.TLSHandshakeTimeout = t.timeouts.Connect
	t.base.ResponseHeaderTimeout = t.timeouts.Read

	var rt http.RoundTripper = t.base
	if t.custom != nil {
		rt = t.custom
	}
	rt = &retryTransport{base: rt, maxRetries: t.maxRetries, logger: t.logger}
	rt = NewHeaderInjector(rt, t.headers, t.logger)
	if t.wrap != nil {
		rt = t.wrap(rt)
	}

	maxRedirects := t.maxRedirects
	t.client = &http.Client{
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("transport: stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return t
}

// WithTimeouts sets the connect, read and write timeouts. Zero fields keep
// their defaults.
func WithTimeouts(to Timeouts) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if to.Connect > 0 {
			t.timeouts.Connect = to.Connect
		}
		if to.Read > 0 {
			t.timeouts.Read = to.Read
		}
		if to.Write > 0 {
			t.timeouts.Write = to.Write
		}
	}
}

// WithInsecureSkipVerify configures TLS to skip certificate verification.
// WARNING: Only use this for testing. Never use in production.
func WithInsecureSkipVerify(skip bool) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if skip {
			fmt.Fprintf(os.Stderr, "WARNING: TLS certificate verification disabled. This is insecure and should only be used for testing.\n")
		}
		if t.base.TLSClientConfig == nil {
			t.base.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		t.base.TLSClientConfig.InsecureSkipVerify = skip
	}
}

// WithTLSConfig sets a custom TLS configuration.
// NOTE: MinVersion is enforced to be at least TLS 1.2 for security.
func WithTLSConfig(cfg *tls.Config) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if cfg == nil {
			return
		}
		cfg = cfg.Clone()
		if cfg.MinVersion < tls.VersionTLS12 {
			cfg.MinVersion = tls.VersionTLS12
		}
		t.base.TLSClientConfig = cfg
	}
}

// WithProxy sets the proxy selector. Nil disables proxies.
func WithProxy(proxy func(*http.Request) (*url.URL, error)) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.base.Proxy = proxy
	}
}

// WithHeaders sets the caller headers merged into every attempt.
func WithHeaders(h Headers) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.headers = h
	}
}

// WithMaxRedirects sets how many redirects are followed.
func WithMaxRedirects(n int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if n >= 0 {
			t.maxRedirects = n
		}
	}
}

// WithConnectRetries sets how often a request is retried when its
// connection could not be established. Zero disables the retry.
func WithConnectRetries(n int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithAuthenticator installs wrap as the outermost round tripper.
func WithAuthenticator(wrap func(http.RoundTripper) http.RoundTripper) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.wrap = wrap
	}
}

// WithBaseTransport replaces the dialing transport. Timeouts and TLS
// options do not apply to it.
func WithBaseTransport(rt http.RoundTripper) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.custom = rt
	}
}

// WithLogger sets the logger for transport diagnostics.
func WithLogger(logger *slog.Logger) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Post sends body to url and returns the fully read response. Status codes
// are not interpreted.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()

	respBody, err := readAllPooled(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Client returns the underlying HTTP client for advanced configuration.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// Timeouts returns the effective timeouts.
func (t *HTTPTransport) Timeouts() Timeouts {
	return t.timeouts
}

// CloseIdleConnections closes any idle connections in the transport.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// unwrapURLError strips the *url.Error added by http.Client so callers see
// the transport error itself.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

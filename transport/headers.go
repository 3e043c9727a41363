package transport

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/smnsjas/go-ntlmlogin/auth"
)

// Header is one caller supplied header.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered list of caller headers. Later entries with the
// same name replace earlier ones.
type Headers []Header

// HeadersFromMap converts m into Headers sorted by name.
func HeadersFromMap(m map[string]string) Headers {
	if len(m) == 0 {
		return nil
	}
	out := make(Headers, 0, len(m))
	for k, v := range m {
		out = append(out, Header{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the last value set for name, matched case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value, true
		}
	}
	return "", false
}

// Set replaces the value of name or appends it.
func (h *Headers) Set(name, value string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Name, name) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// HeaderInjector merges caller headers into every outgoing request. Caller
// values replace existing values of the same name, except for the
// authorization headers, which belong to the handshake.
type HeaderInjector struct {
	base    http.RoundTripper
	headers Headers
}

// NewHeaderInjector wraps base. Reserved headers are dropped with a warning.
func NewHeaderInjector(base http.RoundTripper, headers Headers, logger *slog.Logger) *HeaderInjector {
	if base == nil {
		base = http.DefaultTransport
	}
	kept := make(Headers, 0, len(headers))
	for _, hd := range headers {
		if auth.IsReservedHeader(hd.Name) {
			if logger != nil {
				logger.Warn("ignoring caller header owned by the handshake", "header", hd.Name)
			}
			continue
		}
		kept = append(kept, hd)
	}
	return &HeaderInjector{base: base, headers: kept}
}

// Apply sets the caller headers on dst.
func (h *HeaderInjector) Apply(dst http.Header) {
	for _, hd := range h.headers {
		if auth.IsReservedHeader(hd.Name) {
			continue
		}
		dst.Set(hd.Name, hd.Value)
	}
}

// RoundTrip implements http.RoundTripper.
func (h *HeaderInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(h.headers) == 0 {
		return h.base.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	h.Apply(out.Header)
	return h.base.RoundTrip(out)
}

package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Handshake schemes understood by the authenticator.
const (
	SchemeNTLM      = "NTLM"
	SchemeNegotiate = "Negotiate"
)

var schemaPreference = [...]string{SchemeNTLM, SchemeNegotiate}

// challengeHeaders names the header pair used for a challenge status.
type challengeHeaders struct {
	challenge     string // response header carrying the server token
	authorization string // request header carrying the client token
}

var (
	serverHeaders = challengeHeaders{challenge: "Www-Authenticate", authorization: "Authorization"}
	proxyHeaders  = challengeHeaders{challenge: "Proxy-Authenticate", authorization: "Proxy-Authorization"}
)

// headersFor returns the header pair for a 401 or 407 response.
func headersFor(status int) challengeHeaders {
	if status == http.StatusProxyAuthRequired {
		return proxyHeaders
	}
	return serverHeaders
}

// IsReservedHeader reports whether name is owned by the handshake and must
// not be set from caller input.
func IsReservedHeader(name string) bool {
	name = http.CanonicalHeaderKey(name)
	return name == serverHeaders.authorization || name == proxyHeaders.authorization
}

// IsChallengeStatus reports whether status asks for authentication.
func IsChallengeStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusProxyAuthRequired
}

type authheader struct {
	schema string
	data   string
}

// newAuthHeader extracts the most preferred supported scheme from the
// challenge header values. If no supported scheme is offered it returns an
// empty authheader.
func newAuthHeader(h http.Header, name string) authheader {
	values := h.Values(name)
	preferred, idx := -1, -1
	for i, s := range values {
		s = strings.TrimSpace(s)
		for j, schema := range schemaPreference {
			if strings.EqualFold(s, schema) || hasSchemaPrefix(s, schema) {
				if preferred == -1 || j < preferred {
					preferred = j
					idx = i
				}
				break
			}
		}
	}
	if idx == -1 {
		return authheader{}
	}
	_, data, _ := strings.Cut(strings.TrimSpace(values[idx]), " ")
	return authheader{
		schema: schemaPreference[preferred],
		data:   strings.TrimSpace(data),
	}
}

func hasSchemaPrefix(s, schema string) bool {
	return len(s) > len(schema) && strings.EqualFold(s[:len(schema)], schema) && s[len(schema)] == ' '
}

// isNTLM returns true if the server offered NTLM or Negotiate.
func (h authheader) isNTLM() bool {
	return h.schema == SchemeNTLM || h.schema == SchemeNegotiate
}

// token decodes the base64 token following the scheme. A bare scheme
// yields a nil token and no error.
func (h authheader) token() ([]byte, error) {
	if !h.isNTLM() || h.data == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(h.data)
}

// formatAuthorization renders a client token as a header value.
func formatAuthorization(schema string, token []byte) string {
	return schema + " " + base64.StdEncoding.EncodeToString(token)
}

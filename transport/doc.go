// Package transport builds the HTTP client used for one login call.
//
// The transport layer handles:
//   - fixed connect/read/write timeouts (30s each by default)
//   - redirects, TLS configuration and proxies
//   - retrying a request whose connection could not be established
//   - merging caller headers into every attempt, handshake legs included
//
// The client speaks HTTP/1.1 only and opens at most one connection per
// host, so NTLM handshake legs stay on the connection they authenticate.
package transport

// Package ntlmtest provides an in-process HTTP server speaking the server
// side of the NTLM handshake, for tests.
//
// The server keeps handshake state per client connection (keyed by remote
// address), verifies NTLMv2 proofs against the configured password and
// records every request so tests can assert on attempts, headers and
// connection reuse.
package ntlmtest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/smnsjas/go-ntlmlogin/auth"
)

// Behavior selects how the server answers handshake legs.
type Behavior int

const (
	// Verify runs the full handshake and accepts valid credentials only.
	Verify Behavior = iota
	// NoAuth never challenges.
	NoAuth
	// RejectAll answers every authenticate message with a bare challenge.
	RejectAll
	// MalformedChallenge answers the negotiate leg with a token that is not
	// a CHALLENGE_MESSAGE.
	MalformedChallenge
	// MissingChallenge answers the negotiate leg with a bare scheme.
	MissingChallenge
	// CloseAfterChallenge closes the connection after sending the
	// challenge, breaking connection affinity.
	CloseAfterChallenge
)

// Config describes the server.
type Config struct {
	Username string // account name without domain
	Password string
	Domain   string // NetBIOS domain announced in the challenge

	Behavior Behavior

	// Scheme is the advertised scheme, "NTLM" when empty.
	Scheme string
	// Proxy makes the server challenge with 407 and Proxy-* headers.
	Proxy bool

	// Status, ContentType and Body describe the final response.
	// Status defaults to 200.
	Status      int
	ContentType string
	Body        string

	// Final, when set, replaces the final response.
	Final gin.HandlerFunc

	// RequireChannelBinding rejects authenticate messages whose NTLMv2
	// response does not carry the tls-server-end-point binding of the
	// server certificate. Only meaningful with NewTLSServer.
	RequireChannelBinding bool
}

// Request is a recorded request.
type Request struct {
	Method        string
	Path          string
	RemoteAddr    string
	Authorization string
	Header        http.Header
	Body          []byte

	// User and Domain are decoded from an AUTHENTICATE_MESSAGE.
	User   string
	Domain string
	// ChannelBindings is the MsvAvChannelBindings hash carried in the
	// NTLMv2 response, nil when absent.
	ChannelBindings []byte
}

// Server is a mock NTLM protected endpoint.
type Server struct {
	*httptest.Server

	cfg Config

	mu       sync.Mutex
	requests []Request
	pending  map[string][8]byte // remote addr -> server challenge
}

// NewServer starts a plain HTTP server. Call Close when done.
func NewServer(cfg Config) *Server {
	s := newServer(cfg)
	s.Server = httptest.NewServer(s.router())
	return s
}

// NewTLSServer starts an HTTPS server with a self-signed certificate.
// Use Client().Transport or the certificate to trust it.
func NewTLSServer(cfg Config) *Server {
	s := newServer(cfg)
	s.Server = httptest.NewTLSServer(s.router())
	return s
}

func newServer(cfg Config) *Server {
	if cfg.Scheme == "" {
		cfg.Scheme = auth.SchemeNTLM
	}
	if cfg.Status == 0 {
		cfg.Status = http.StatusOK
	}
	if cfg.Domain == "" {
		cfg.Domain = "TESTDOMAIN"
	}
	return &Server{cfg: cfg, pending: make(map[string][8]byte)}
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Any("/*path", s.handle)
	return r
}

// Requests returns a copy of the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Attempts returns the number of requests received.
func (s *Server) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) challengeStatus() int {
	if s.cfg.Proxy {
		return http.StatusProxyAuthRequired
	}
	return http.StatusUnauthorized
}

func (s *Server) challengeHeader() string {
	if s.cfg.Proxy {
		return "Proxy-Authenticate"
	}
	return "WWW-Authenticate"
}

func (s *Server) authorizationHeader() string {
	if s.cfg.Proxy {
		return "Proxy-Authorization"
	}
	return "Authorization"
}

func (s *Server) handle(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	authz := c.GetHeader(s.authorizationHeader())
	addr := c.Request.RemoteAddr
	msg := decodeToken(authz)

	rec := Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		RemoteAddr:    addr,
		Authorization: authz,
		Header:        c.Request.Header.Clone(),
		Body:          body,
	}
	am, parsed := authenticateMessage{}, false
	if messageType(msg) == auth.MessageAuthenticate {
		am, parsed = parseAuthenticate(msg)
		rec.User, rec.Domain = am.user, am.domain
		rec.ChannelBindings = channelBindings(am.ntResponse)
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()

	if s.cfg.Behavior == NoAuth {
		s.final(c)
		return
	}

	switch messageType(msg) {
	case auth.MessageNegotiate:
		s.answerNegotiate(c, addr)
	case auth.MessageAuthenticate:
		s.mu.Lock()
		challenge, ok := s.pending[addr]
		delete(s.pending, addr)
		s.mu.Unlock()
		if !ok || !parsed || s.cfg.Behavior == RejectAll || !s.verify(am, challenge) {
			s.challenge(c, "")
			return
		}
		if s.cfg.RequireChannelBinding && !s.bindingMatches(rec.ChannelBindings) {
			s.challenge(c, "")
			return
		}
		s.final(c)
	default:
		s.challenge(c, "")
	}
}

func (s *Server) answerNegotiate(c *gin.Context, addr string) {
	switch s.cfg.Behavior {
	case MalformedChallenge:
		s.challenge(c, base64.StdEncoding.EncodeToString([]byte("not a challenge message")))
		return
	case MissingChallenge:
		s.challenge(c, "")
		return
	}

	var serverChallenge [8]byte
	_, _ = rand.Read(serverChallenge[:])
	msg, err := auth.ChallengeMessage{
		Flags:           auth.DefaultChallengeFlags,
		ServerChallenge: serverChallenge,
		TargetName:      s.cfg.Domain,
		TargetInfo: auth.AvPairs{
			auth.AvNbDomainName:   toUnicode(s.cfg.Domain),
			auth.AvNbComputerName: toUnicode("NTLMTEST"),
		},
	}.MarshalBinary()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.pending[addr] = serverChallenge
	s.mu.Unlock()

	if s.cfg.Behavior == CloseAfterChallenge {
		c.Header("Connection", "close")
	}
	s.challenge(c, base64.StdEncoding.EncodeToString(msg))
}

func (s *Server) challenge(c *gin.Context, token string) {
	value := s.cfg.Scheme
	if token != "" {
		value += " " + token
	}
	c.Header(s.challengeHeader(), value)
	c.String(s.challengeStatus(), "unauthorized")
}

func (s *Server) final(c *gin.Context) {
	if s.cfg.Final != nil {
		s.cfg.Final(c)
		return
	}
	if s.cfg.ContentType != "" {
		c.Header("Content-Type", s.cfg.ContentType)
	}
	c.Status(s.cfg.Status)
	if s.cfg.Body != "" {
		_, _ = c.Writer.WriteString(s.cfg.Body)
	}
}

func decodeToken(header string) []byte {
	_, data, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return nil
	}
	msg, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil
	}
	return msg
}

func messageType(msg []byte) uint32 {
	if len(msg) < 12 || string(msg[:8]) != string(auth.Signature[:]) {
		return 0
	}
	return binary.LittleEndian.Uint32(msg[8:12])
}

package auth

import (
	"crypto/x509"

	"github.com/Azure/go-ntlmssp"
	ntlmcbt "github.com/smnsjas/go-ntlm-cbt"
)

// HandshakeCodec computes the two client tokens of the NTLM handshake.
// Implementations perform no I/O.
type HandshakeCodec interface {
	// NegotiateToken returns the NEGOTIATE_MESSAGE announcing capabilities
	// and the client machine identity.
	NegotiateToken(creds Credentials) ([]byte, error)

	// AuthenticateToken answers the server CHALLENGE_MESSAGE. A malformed
	// challenge is reported as a *ProtocolError.
	AuthenticateToken(challenge []byte, creds Credentials) ([]byte, error)
}

// NTLMCodec is the stateless NTLMv2 codec backed by go-ntlmssp.
//
// The user's domain travels in the username (DOMAIN\user or a UPN) and is
// split by go-ntlmssp when the authenticate message is built. Domain and
// Workstation describe the client machine, not the user.
type NTLMCodec struct {
	// Domain is the client machine's domain announced in the negotiate
	// message. Usually empty.
	Domain string

	// Workstation is announced in both client messages when non-empty.
	Workstation string
}

// NegotiateToken implements HandshakeCodec.
func (c NTLMCodec) NegotiateToken(Credentials) ([]byte, error) {
	return ntlmssp.NewNegotiateMessage(c.Domain, c.Workstation)
}

// AuthenticateToken implements HandshakeCodec.
func (c NTLMCodec) AuthenticateToken(challenge []byte, creds Credentials) ([]byte, error) {
	if err := checkChallenge(challenge); err != nil {
		return nil, err
	}
	token, err := ntlmssp.NewAuthenticateMessage(challenge, creds.Username(), creds.Password(),
		&ntlmssp.AuthenticateMessageOptions{WorkstationName: c.Workstation})
	if err != nil {
		return nil, &ProtocolError{Reason: err.Error()}
	}
	return token, nil
}

// checkChallenge rejects challenges the NTLMv2 response cannot be built for.
func checkChallenge(challenge []byte) error {
	cm, err := ParseChallenge(challenge)
	if err != nil {
		return err
	}
	if cm.Flags.Has(FlagNegotiateLMKey) {
		return protocolErrorf("server requested NTLMv1 (NTLMSSP_NEGOTIATE_LM_KEY)")
	}
	return nil
}

// channelBindingCodec binds the handshake to the server TLS certificate
// (tls-server-end-point, RFC 5929) for servers enforcing Extended
// Protection. It keeps the negotiate message between legs, so one instance
// serves exactly one handshake.
type channelBindingCodec struct {
	nego        *ntlmcbt.Negotiator
	workstation string
}

func newChannelBindingCodec(cert *x509.Certificate, workstation string) *channelBindingCodec {
	return &channelBindingCodec{
		nego:        &ntlmcbt.Negotiator{ChannelBindings: ntlmcbt.ComputeTLSServerEndpoint(cert)},
		workstation: workstation,
	}
}

// NegotiateToken implements HandshakeCodec.
func (c *channelBindingCodec) NegotiateToken(Credentials) ([]byte, error) {
	return c.nego.Negotiate("", c.workstation)
}

// AuthenticateToken implements HandshakeCodec.
func (c *channelBindingCodec) AuthenticateToken(challenge []byte, creds Credentials) ([]byte, error) {
	if err := checkChallenge(challenge); err != nil {
		return nil, err
	}
	token, err := c.nego.ChallengeResponse(challenge, creds.Username(), creds.Password())
	if err != nil {
		return nil, &ProtocolError{Reason: err.Error()}
	}
	return token, nil
}

// Package auth implements the client side of the NTLM challenge-response
// handshake over HTTP.
//
// # Handshake
//
// A login call owns exactly one HandshakeState. The authenticating round
// tripper sends the request anonymously first. When the server answers
// 401 (or 407 for a proxy) the ChallengeAuthenticator decides the next leg:
//
//	Init              --401--> NegotiateSent      (Authorization: NTLM <negotiate>)
//	NegotiateSent     --401--> ChallengeAnswered  (Authorization: NTLM <authenticate>)
//	ChallengeAnswered --401--> Failed             (credentials rejected)
//
// Any other status ends the handshake. At most two handshake legs are ever
// sent, and both must travel over the connection that carried the first
// 401, since NTLM authenticates the connection rather than the request.
//
// # Usage
//
//	creds := auth.NewCredentials(`DOMAIN\alice`, "secret")
//	rt := auth.NewTransport(base, auth.NewChallengeAuthenticator(creds, auth.NTLMCodec{}))
//	client := &http.Client{Transport: rt}
package auth

// Package ntlmlogin performs HTTP login requests against endpoints
// protected by NTLM, completing the challenge-response handshake
// transparently and returning a normalized result.
//
// # Architecture
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  login/       Login entry point, Future, classification │
//	├─────────────────────────────────────────────────────────┤
//	│  value/       Structured body value + JSON body codec   │
//	├─────────────────────────────────────────────────────────┤
//	│  transport/   HTTP client, header injection, retry      │
//	├─────────────────────────────────────────────────────────┤
//	│  auth/        NTLM handshake state machine and codec    │
//	└─────────────────────────────────────────────────────────┘
//
// A request travels through these round trippers, outermost first:
//
//	auth.Transport -> transport.HeaderInjector -> retry -> http.Transport
//
// # Quick Start
//
//	fut := login.Login("https://svc.example/login", `CONTOSO\alice`, "secret",
//	    nil, value.Object(map[string]value.Value{"a": value.Int(1)}))
//	resp, err := fut.Get()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Status, resp.Body)
//
// # Failures
//
// A call fails with login.ErrInvalidUsernameOrPassword when the server
// rejects the handshake, with login.ErrNoInternetConnection when the host
// cannot be resolved or reached, and with the transport error otherwise.
// Use login.Classify to branch on the kind.
//
// # Handshake
//
// The handshake takes at most two extra requests, both on the connection
// that received the first 401 or 407. Responses with other statuses are
// returned as they are.
package ntlmlogin

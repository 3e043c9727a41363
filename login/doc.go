// Package login performs an HTTP login against an endpoint protected by
// NTLM and delivers a normalized result.
//
// # Quick Start
//
//	fut := login.Login("https://svc.example/api/login", `CONTOSO\alice`, "secret",
//	    map[string]string{"X-Client": "mobile"},
//	    value.Object(map[string]value.Value{"device": value.String("tablet")}))
//
//	resp, err := fut.Get()
//	switch {
//	case errors.Is(err, login.ErrInvalidUsernameOrPassword):
//	    // credentials rejected
//	case errors.Is(err, login.ErrNoInternetConnection):
//	    // host could not be resolved or reached
//	case err != nil:
//	    // transport error, passed through untouched
//	default:
//	    fmt.Println(resp.Status, resp.Body)
//	}
//
// # Request
//
// Every call is a POST with a JSON body. A null or empty body sends an
// empty payload. Caller headers are applied to every attempt, handshake
// legs included; the Authorization and Proxy-Authorization headers belong
// to the handshake and cannot be set by the caller.
//
// # Result
//
// The response keeps only the first value of each header, under its
// lowercase name. The body is parsed when the response declares JSON,
// returned as a string otherwise, and is the empty mapping when blank.
//
// # Concurrency
//
// Each call builds its own HTTP client and handshake state, so calls may
// run concurrently. The Future settles exactly once.
package login

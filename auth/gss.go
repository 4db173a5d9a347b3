package auth

import "context"

// TokenProvider drives a GSS/SSPI (Kerberos) token exchange. The core
// never inspects token contents — it only relays AuthGSSContinue bodies
// to the provider and forwards whatever it returns, treating the
// exchange as an opaque SASL-like token relay.
type TokenProvider interface {
	// InitialToken returns the first token to send, given the target
	// host and Kerberos service principal name (e.g. "postgres").
	InitialToken(ctx context.Context, host, service string) ([]byte, error)
	// Continue feeds a server challenge and returns the next token to
	// send (possibly empty) and whether the exchange is complete.
	Continue(ctx context.Context, serverToken []byte) (next []byte, done bool, err error)
}

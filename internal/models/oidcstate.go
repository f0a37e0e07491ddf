package models

import "time"

// OidcHandshakeState is a single-use authorization-code challenge. Created
// when a flow starts, claimed exactly once at callback completion.
type OidcHandshakeState struct {
	ID           string
	Provider     AuthProvider
	State        string
	Nonce        string
	CodeVerifier string
	RedirectURI  string
	IP           string
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	CreatedAt    time.Time
}

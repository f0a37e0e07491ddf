// Package models holds the persistent entity rows of the credential
// subsystem. Repositories scan into these types; services return views
// derived from them, never the rows themselves.
package models

import "time"

// AuthProvider identifies how a login session was established.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
)

// User is the identity anchor. Email is stored normalized (lowercase,
// trimmed) and unique. PasswordHash is empty for OIDC-only accounts.
// PasswordGeneration is bumped on every password change so that session
// tokens minted before the change stop resolving to a principal.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	Name               string
	PasswordGeneration int
	OIDCProvider       string
	OIDCSubject        string
	CreatedAt          time.Time
}

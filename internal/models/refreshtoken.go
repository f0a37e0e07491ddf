package models

import "time"

// RefreshToken is a one-time-rotatable credential bound to a login session.
// Only the SHA-256 digest of the raw token is persisted. A token is eligible
// for rotation while UsedAt and RevokedAt are both nil and ExpiresAt is in
// the future; consumption is an atomic conditional update.
type RefreshToken struct {
	ID        string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

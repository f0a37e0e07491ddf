package models

import "time"

// PasswordResetToken is a single-use credential mailed to a user. Stored by
// digest only, claimed with the same conditional-update pattern as refresh
// tokens.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

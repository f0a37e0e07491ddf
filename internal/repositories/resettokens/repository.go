// Package resettokens provides the repository for single-use password reset
// token rows, stored by digest like refresh tokens.
package resettokens

import (
	"context"
	"time"

	"credgate/internal/models"
)

// Repository is the persistence port for password reset tokens.
type Repository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// TryClaim consumes an unused, unexpired token atomically, returning
	// common.ErrorNoRowsClaimed otherwise.
	TryClaim(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	// InvalidateForUser marks every outstanding token for the user as used,
	// so only the newest requested link works.
	InvalidateForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

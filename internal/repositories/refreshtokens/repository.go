// Package refreshtokens provides the repository for one-time-rotatable
// refresh token rows. Rows hold only the SHA-256 digest of the raw token.
package refreshtokens

import (
	"context"
	"time"

	"credgate/internal/models"
)

// Repository is the persistence port for refresh tokens.
//
// TryClaim is the security-critical operation: a single conditional update
// that marks the row used and returns it only while the row is unused,
// unrevoked, and unexpired. At most one caller wins under concurrency; the
// losers get common.ErrorNoRowsClaimed.
type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// GetByHash is a plain read; it does not consume the token.
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	TryClaim(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	RevokeForSession(ctx context.Context, sessionID string, now time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

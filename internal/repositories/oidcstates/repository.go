// Package oidcstates provides the repository for single-use OIDC handshake
// state rows (state, nonce, PKCE verifier).
package oidcstates

import (
	"context"
	"time"

	"credgate/internal/models"
)

// Repository is the persistence port for handshake states. TryClaim consumes
// the row atomically: it succeeds at most once per (provider, state) pair and
// fails with common.ErrorNoRowsClaimed when the row is missing, expired, or
// already consumed. The three cases are indistinguishable to callers.
type Repository interface {
	Create(ctx context.Context, state *models.OidcHandshakeState) error
	TryClaim(ctx context.Context, provider, state string, now time.Time) (*models.OidcHandshakeState, error)
}

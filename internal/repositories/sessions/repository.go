// Package sessions provides the repository for login session rows. Sessions
// are append-only with soft revocation; nothing here deletes a row.
package sessions

import (
	"context"
	"time"

	"credgate/internal/models"
)

// Repository is the persistence port for login sessions.
type Repository interface {
	Create(ctx context.Context, session *models.LoginSession) error
	// FindActiveByID returns the session only while it is unrevoked and
	// unexpired at now; otherwise common.ErrorNotFound.
	FindActiveByID(ctx context.Context, id string, now time.Time) (*models.LoginSession, error)
	// TouchByID bumps last_seen_at. Callers treat failures as advisory.
	TouchByID(ctx context.Context, id string, now time.Time) error
	// RevokeByID soft-revokes the session and returns the number of rows
	// affected; revoking an already-revoked session affects zero rows and
	// is not an error.
	RevokeByID(ctx context.Context, id string, now time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

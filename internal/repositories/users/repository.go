// Package users provides the repository for user identity rows.
package users

import (
	"context"

	"credgate/internal/models"
)

// Repository is the persistence port for users. Implementations return
// common.ErrorNotFound for missing rows and common.ErrorAlreadyExists for
// unique-constraint violations on create.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOIDCSubject(ctx context.Context, provider, subject string) (*models.User, error)
	LinkOIDC(ctx context.Context, userID, provider, subject string) error
	// UpdatePasswordHash stores a new hash and bumps the password
	// generation, returning the new generation value.
	UpdatePasswordHash(ctx context.Context, userID, hash string) (int, error)
	Delete(ctx context.Context, userID string) error
}

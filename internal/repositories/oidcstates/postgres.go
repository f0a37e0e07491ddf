package oidcstates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credgate/internal/common"
	"credgate/internal/dbx"
	"credgate/internal/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, state *models.OidcHandshakeState) error {
	query := `
		INSERT INTO oidc_states (id, provider, state, nonce, code_verifier, redirect_uri, ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		state.ID, string(state.Provider), state.State, state.Nonce, state.CodeVerifier,
		state.RedirectURI, state.IP, state.ExpiresAt, state.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TryClaim(ctx context.Context, provider, state string, now time.Time) (*models.OidcHandshakeState, error) {
	query := `
		UPDATE oidc_states SET consumed_at = $3
		WHERE provider = $1 AND state = $2 AND consumed_at IS NULL AND expires_at > $3
		RETURNING id, provider, state, nonce, code_verifier, redirect_uri, ip, expires_at, consumed_at, created_at
	`
	row := &models.OidcHandshakeState{}
	var prov string
	err := r.db.QueryRowContext(ctx, query, provider, state, now).Scan(
		&row.ID, &prov, &row.State, &row.Nonce, &row.CodeVerifier,
		&row.RedirectURI, &row.IP, &row.ExpiresAt, &row.ConsumedAt, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNoRowsClaimed
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	row.Provider = models.AuthProvider(prov)
	return row, nil
}

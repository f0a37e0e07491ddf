package sessions

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

func (r *PostgresRepository) Create(ctx context.Context, session *models.LoginSession) error {
	query := `
		INSERT INTO login_sessions (id, user_id, provider, ip, user_agent, created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, string(session.Provider), session.IP, session.UserAgent,
		session.CreatedAt, session.LastSeenAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindActiveByID(ctx context.Context, id string, now time.Time) (*models.LoginSession, error) {
	query := `
		SELECT id, user_id, provider, ip, user_agent, created_at, last_seen_at, expires_at, revoked_at
		FROM login_sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	session := &models.LoginSession{}
	var provider string
	err := r.db.QueryRowContext(ctx, query, id, now).Scan(
		&session.ID, &session.UserID, &provider, &session.IP, &session.UserAgent,
		&session.CreatedAt, &session.LastSeenAt, &session.ExpiresAt, &session.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	session.Provider = models.AuthProvider(provider)
	return session, nil
}

func (r *PostgresRepository) TouchByID(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE login_sessions SET last_seen_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeByID(ctx context.Context, id string, now time.Time) (int64, error) {
	query := `
		UPDATE login_sessions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE login_sessions SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

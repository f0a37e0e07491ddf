// Package services contains the auth orchestration layer: sign-up, sign-in,
// principal resolution, federated sign-in, refresh rotation, sign-out,
// password reset, and account deletion. It composes the hasher, token codec,
// OIDC manager, and repositories, and owns the mapping of storage failures
// to the error taxonomy.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"credgate/internal/common"
	"credgate/internal/config"
	"credgate/internal/dbx"
	"credgate/internal/logging"
	"credgate/internal/mail"
	"credgate/internal/models"
	"credgate/internal/oidc"
	"credgate/internal/password"
	"credgate/internal/repositories/repomanager"
	"credgate/internal/token"
)

// OwnershipChecker reports whether a user still owns collaborative resources
// (e.g. is the sole owner of a workspace). The implementation lives with the
// workspace domain outside this subsystem.
type OwnershipChecker interface {
	OwnsCollaborativeResources(ctx context.Context, userID string) (bool, error)
}

// NoOwnership is the default OwnershipChecker for deployments where the
// workspace collaborator is not wired; it never blocks deletion.
type NoOwnership struct{}

func (NoOwnership) OwnsCollaborativeResources(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

// UserView is the caller-facing projection of a user row.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the resolved, authenticated identity derived from a verified
// session token.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

// AuthResult bundles everything a successful authentication returns.
type AuthResult struct {
	User         UserView
	SessionID    string
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// RotateResult is returned by a successful refresh rotation.
type RotateResult struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthService orchestrates the credential and session lifecycle.
type AuthService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	hasher    *password.Hasher
	codec     *token.Codec
	oidcMgr   *oidc.Manager
	mailer    mail.Mailer
	ownership OwnershipChecker
	log       logging.Logger

	sessionLifetime time.Duration
	refreshLifetime time.Duration

	now func() time.Time
}

// NewAuthService constructs the service. oidcMgr and mailer may be nil when
// the corresponding configuration blocks are absent.
func NewAuthService(
	cfg *config.Config,
	db *sql.DB,
	repos repomanager.RepositoryManager,
	hasher *password.Hasher,
	codec *token.Codec,
	oidcMgr *oidc.Manager,
	mailer mail.Mailer,
	ownership OwnershipChecker,
	log logging.Logger,
) *AuthService {
	if ownership == nil {
		ownership = NoOwnership{}
	}
	return &AuthService{
		db:              db,
		repos:           repos,
		hasher:          hasher,
		codec:           codec,
		oidcMgr:         oidcMgr,
		mailer:          mailer,
		ownership:       ownership,
		log:             log,
		sessionLifetime: cfg.SessionLifetime,
		refreshLifetime: cfg.RefreshLifetime,
		now:             time.Now,
	}
}

func userView(u *models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

// recordAudit appends an audit row. Failures are logged and never block the
// primary outcome.
func (s *AuthService) recordAudit(ctx context.Context, event, status, userID, identifier, ip string, metadata map[string]string) {
	row := &models.AuthAuditEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Event:      event,
		Status:     status,
		Identifier: identifier,
		IP:         ip,
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	if err := s.repos.Audit(s.db).Record(ctx, row); err != nil {
		s.log.Error(ctx, "audit record failed", "event", event, "error", err)
	}
}

// mintSession creates a login session with a bound refresh token and signs a
// session token. Session and refresh rows commit together.
func (s *AuthService) mintSession(ctx context.Context, user *models.User, provider models.AuthProvider, ip, userAgent string) (*AuthResult, error) {
	now := s.now()
	session := &models.LoginSession{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Provider:   provider,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.sessionLifetime),
	}

	rawRefresh, refreshRow, err := s.newRefreshToken(session.ID)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Sessions(tx).Create(ctx, session); err != nil {
			return err
		}
		return s.repos.RefreshTokens(tx).Create(ctx, refreshRow)
	})
	if err != nil {
		return nil, err
	}

	signed, err := s.codec.Sign(user.ID, user.Email, user.PasswordGeneration)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         userView(user),
		SessionID:    session.ID,
		Token:        signed,
		RefreshToken: rawRefresh,
		ExpiresAt:    refreshRow.ExpiresAt,
	}, nil
}

// newRefreshToken mints a raw token and the row holding only its digest.
func (s *AuthService) newRefreshToken(sessionID string) (string, *models.RefreshToken, error) {
	raw, err := common.MakeRandHexString(32)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	row := &models.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TokenHash: common.HashSHA256Hex(raw),
		ExpiresAt: now.Add(s.refreshLifetime),
		CreatedAt: now,
	}
	return raw, row, nil
}

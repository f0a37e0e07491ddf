package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"credgate/internal/autherr"
	"credgate/internal/common"
	"credgate/internal/dbx"
	"credgate/internal/models"
)

// msgBadCredentials is the single message for every password sign-in
// failure. Unknown email and wrong password are indistinguishable to the
// caller.
const msgBadCredentials = "invalid email or password"

const (
	minPasswordLen = 8
	// bcrypt truncates input at 72 bytes; longer passwords are rejected
	// instead of silently truncated.
	maxPasswordLen = 72
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return autherr.E(autherr.BadRequest, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return autherr.E(autherr.BadRequest, "invalid email address")
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen {
		return autherr.E(autherr.BadRequest, "password must be at least 8 characters")
	}
	if len(pw) > maxPasswordLen {
		return autherr.E(autherr.BadRequest, "password must be at most 72 characters")
	}
	return nil
}

// SignUp registers a password account and signs the new user in.
func (s *AuthService) SignUp(ctx context.Context, email, pw, name, ip, userAgent string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(pw); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}

	hash, err := s.hasher.Hash(ctx, pw)
	if err != nil {
		return nil, autherr.Wrap(autherr.BadRequest, "could not create account", err)
	}

	user, err := s.repos.Users(s.db).Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, autherr.E(autherr.Conflict, "email already registered")
		}
		// Persistence failures on sign-up stay generically framed; the
		// cause is logged, never serialized.
		return nil, autherr.Wrap(autherr.BadRequest, "could not create account", err)
	}

	s.recordAudit(ctx, models.AuditSignup, models.AuditStatusOK, user.ID, email, ip, nil)

	res, err := s.mintSession(ctx, user, models.ProviderPassword, ip, userAgent)
	if err != nil {
		return nil, autherr.Wrap(autherr.BadRequest, "could not create account", err)
	}
	return res, nil
}

// SignIn authenticates a password account. All failure paths return the same
// unauthorized message.
func (s *AuthService) SignIn(ctx context.Context, email, pw, ip, userAgent string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.recordAudit(ctx, models.AuditLoginFailure, models.AuditStatusFailed, "", email, ip, map[string]string{"reason": "unknown_email"})
			return nil, autherr.E(autherr.Unauthorized, msgBadCredentials)
		}
		return nil, autherr.Wrap(autherr.Internal, "load user", err)
	}
	if user.PasswordHash == "" {
		// Federated-only account; no password to check.
		s.recordAudit(ctx, models.AuditLoginFailure, models.AuditStatusFailed, user.ID, email, ip, map[string]string{"reason": "no_password"})
		return nil, autherr.E(autherr.Unauthorized, msgBadCredentials)
	}

	ok, err := s.hasher.Verify(ctx, pw, user.PasswordHash)
	if err != nil {
		return nil, autherr.Wrap(autherr.Internal, "verify password", err)
	}
	if !ok {
		s.recordAudit(ctx, models.AuditLoginFailure, models.AuditStatusFailed, user.ID, email, ip, map[string]string{"reason": "bad_password"})
		return nil, autherr.E(autherr.Unauthorized, msgBadCredentials)
	}

	s.recordAudit(ctx, models.AuditLoginSuccess, models.AuditStatusOK, user.ID, email, ip, nil)

	res, err := s.mintSession(ctx, user, models.ProviderPassword, ip, userAgent)
	if err != nil {
		return nil, autherr.Wrap(autherr.Internal, "create session", err)
	}
	return res, nil
}

// PrincipalFromToken verifies a bearer token and resolves it to a live
// principal. Tokens minted before the user's latest password change carry a
// stale generation marker and stop resolving.
func (s *AuthService) PrincipalFromToken(ctx context.Context, raw string) (*Principal, error) {
	payload, err := s.codec.Verify(raw)
	if err != nil {
		return nil, autherr.E(autherr.Unauthorized, "invalid or expired token")
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, payload.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, autherr.E(autherr.Unauthorized, "invalid or expired token")
		}
		return nil, autherr.Wrap(autherr.Internal, "load user", err)
	}
	if payload.PasswordGen != user.PasswordGeneration {
		return nil, autherr.E(autherr.Unauthorized, "invalid or expired token")
	}

	return &Principal{UserID: user.ID, Email: user.Email}, nil
}

// GetUser returns the profile view for an authenticated user.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*UserView, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, autherr.E(autherr.NotFound, "user not found")
		}
		return nil, autherr.Wrap(autherr.Internal, "load user", err)
	}
	v := userView(user)
	return &v, nil
}

// Rotate consumes a refresh token and issues a fresh session token plus a
// replacement refresh token bound to the same session. The consume is a
// single conditional update, so a token presented twice fails the second
// time regardless of interleaving.
func (s *AuthService) Rotate(ctx context.Context, rawRefresh, ip string) (*RotateResult, error) {
	if rawRefresh == "" {
		return nil, autherr.E(autherr.Unauthorized, "invalid refresh token")
	}
	now := s.now()
	tokenHash := common.HashSHA256Hex(rawRefresh)

	var (
		session    *models.LoginSession
		user       *models.User
		newRaw     string
		newRefresh *models.RefreshToken
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		claimed, err := s.repos.RefreshTokens(tx).TryClaim(ctx, tokenHash, now)
		if err != nil {
			return err
		}
		session, err = s.repos.Sessions(tx).FindActiveByID(ctx, claimed.SessionID, now)
		if err != nil {
			return err
		}
		user, err = s.repos.Users(tx).GetByID(ctx, session.UserID)
		if err != nil {
			return err
		}
		newRaw, newRefresh, err = s.newRefreshToken(session.ID)
		if err != nil {
			return err
		}
		return s.repos.RefreshTokens(tx).Create(ctx, newRefresh)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNoRowsClaimed) || errors.Is(err, common.ErrorNotFound) {
			s.recordAudit(ctx, models.AuditSessionRefreshed, models.AuditStatusFailed, "", "", ip, nil)
			return nil, autherr.E(autherr.Unauthorized, "invalid refresh token")
		}
		return nil, autherr.Wrap(autherr.Internal, "rotate refresh token", err)
	}

	if err := s.repos.Sessions(s.db).TouchByID(ctx, session.ID, now); err != nil {
		s.log.Warn(ctx, "session touch failed", "session_id", session.ID, "error", err)
	}

	signed, err := s.codec.Sign(user.ID, user.Email, user.PasswordGeneration)
	if err != nil {
		return nil, autherr.Wrap(autherr.Internal, "sign token", err)
	}

	s.recordAudit(ctx, models.AuditSessionRefreshed, models.AuditStatusOK, user.ID, user.Email, ip, map[string]string{"session_id": session.ID})

	return &RotateResult{Token: signed, RefreshToken: newRaw, ExpiresAt: newRefresh.ExpiresAt}, nil
}

// SignOut revokes sessions for the authenticated user. With a refresh token
// it revokes only the session that token is bound to; without one it revokes
// every session. Revocation is idempotent: signing out of an already-revoked
// session succeeds.
func (s *AuthService) SignOut(ctx context.Context, userID, rawRefresh, ip string) error {
	now := s.now()

	if rawRefresh == "" {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if _, err := s.repos.Sessions(tx).RevokeAllForUser(ctx, userID, now); err != nil {
				return err
			}
			_, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, userID, now)
			return err
		})
		if err != nil {
			return autherr.Wrap(autherr.Internal, "revoke sessions", err)
		}
		s.recordAudit(ctx, models.AuditSessionRevoked, models.AuditStatusOK, userID, "", ip, map[string]string{"scope": "all"})
		return nil
	}

	row, err := s.repos.RefreshTokens(s.db).GetByHash(ctx, common.HashSHA256Hex(rawRefresh))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Already rotated away or never existed; nothing to revoke.
			return nil
		}
		return autherr.Wrap(autherr.Internal, "load refresh token", err)
	}

	session, err := s.repos.Sessions(s.db).FindActiveByID(ctx, row.SessionID, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return autherr.Wrap(autherr.Internal, "load session", err)
	}
	if session.UserID != userID {
		return autherr.E(autherr.Unauthorized, "invalid refresh token")
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Sessions(tx).RevokeByID(ctx, session.ID, now); err != nil {
			return err
		}
		_, err := s.repos.RefreshTokens(tx).RevokeForSession(ctx, session.ID, now)
		return err
	})
	if err != nil {
		return autherr.Wrap(autherr.Internal, "revoke session", err)
	}

	s.recordAudit(ctx, models.AuditSessionRevoked, models.AuditStatusOK, userID, "", ip, map[string]string{"session_id": session.ID})
	return nil
}

// DeleteUser removes the account and, through foreign keys, every session,
// token, and handshake row attached to it. Deletion is refused while the
// user still owns collaborative resources.
func (s *AuthService) DeleteUser(ctx context.Context, userID, ip string) error {
	owns, err := s.ownership.OwnsCollaborativeResources(ctx, userID)
	if err != nil {
		return autherr.Wrap(autherr.Internal, "check resource ownership", err)
	}
	if owns {
		return autherr.E(autherr.Conflict, "transfer or delete owned resources before deleting the account")
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return autherr.E(autherr.NotFound, "user not found")
		}
		return autherr.Wrap(autherr.Internal, "load user", err)
	}

	if err := s.repos.Users(s.db).Delete(ctx, userID); err != nil {
		return autherr.Wrap(autherr.Internal, "delete user", err)
	}

	s.recordAudit(ctx, models.AuditUserDeleted, models.AuditStatusOK, userID, user.Email, ip, nil)
	return nil
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"credgate/internal/autherr"
	"credgate/internal/common"
	"credgate/internal/dbx"
	"credgate/internal/models"
)

// ResetTokenTTL bounds how long a mailed password reset link stays valid.
const ResetTokenTTL = 30 * time.Minute

// RequestPasswordReset mails a single-use reset link. For an unknown email
// it does nothing and still succeeds, so the endpoint cannot be used to
// probe which addresses have accounts. Requesting again invalidates every
// earlier outstanding link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, ip string) error {
	if s.mailer == nil {
		return autherr.E(autherr.BadRequest, "password reset is not configured")
	}
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return autherr.Wrap(autherr.Internal, "load user", err)
	}

	raw, err := common.MakeRandHexString(32)
	if err != nil {
		return autherr.Wrap(autherr.Internal, "generate reset token", err)
	}
	now := s.now()
	row := &models.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: common.HashSHA256Hex(raw),
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.ResetTokens(tx).InvalidateForUser(ctx, user.ID, now); err != nil {
			return err
		}
		return s.repos.ResetTokens(tx).Create(ctx, row)
	})
	if err != nil {
		return autherr.Wrap(autherr.Internal, "store reset token", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, raw); err != nil {
		s.log.Error(ctx, "reset email send failed", "user_id", user.ID, "error", err)
		return autherr.Wrap(autherr.Internal, "send reset email", err)
	}

	s.recordAudit(ctx, models.AuditPasswordResetRequested, models.AuditStatusOK, user.ID, email, ip, nil)
	return nil
}

// ResetPassword consumes a reset token and replaces the password. Changing
// the password bumps the password generation and revokes every session and
// refresh token, so all previously issued credentials stop working at once.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword, ip string) error {
	if rawToken == "" {
		return autherr.E(autherr.BadRequest, "invalid or expired reset token")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return autherr.Wrap(autherr.Internal, "hash password", err)
	}

	now := s.now()
	var userID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		claimed, err := s.repos.ResetTokens(tx).TryClaim(ctx, common.HashSHA256Hex(rawToken), now)
		if err != nil {
			return err
		}
		userID = claimed.UserID
		if _, err := s.repos.Users(tx).UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		if _, err := s.repos.Sessions(tx).RevokeAllForUser(ctx, userID, now); err != nil {
			return err
		}
		_, err = s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, userID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNoRowsClaimed) {
			return autherr.E(autherr.BadRequest, "invalid or expired reset token")
		}
		return autherr.Wrap(autherr.Internal, "reset password", err)
	}

	s.recordAudit(ctx, models.AuditPasswordChanged, models.AuditStatusOK, userID, "", ip, nil)
	return nil
}

package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"credgate/internal/autherr"
	"credgate/internal/common"
	"credgate/internal/models"
	"credgate/internal/oidc"
)

// OIDCStart begins a federated sign-in handshake and returns the provider
// authorization URL to redirect the browser to.
func (s *AuthService) OIDCStart(ctx context.Context, ip string) (*oidc.StartResult, error) {
	if s.oidcMgr == nil {
		return nil, autherr.E(autherr.NotFound, "federated sign-in is not configured")
	}
	res, err := s.oidcMgr.Start(ctx, "", ip)
	if err != nil {
		return nil, autherr.Wrap(autherr.Internal, "start federated sign-in", err)
	}
	return res, nil
}

// OIDCComplete finishes the handshake at the provider callback and signs the
// user in, creating or linking the local account as needed.
//
// Resolution order: an account already linked to the provider subject wins;
// otherwise a password account with the same verified email gets linked;
// otherwise a new account is created.
func (s *AuthService) OIDCComplete(ctx context.Context, code, state, ip, userAgent string) (*AuthResult, error) {
	if s.oidcMgr == nil {
		return nil, autherr.E(autherr.NotFound, "federated sign-in is not configured")
	}

	identity, err := s.oidcMgr.Complete(ctx, code, state)
	if err != nil {
		if errors.Is(err, oidc.ErrInvalidState) {
			return nil, autherr.E(autherr.Unauthorized, oidc.ErrInvalidState.Error())
		}
		return nil, autherr.Wrap(autherr.Unauthorized, "federated sign-in failed", err)
	}

	user, err := s.resolveFederatedUser(ctx, identity, ip)
	if err != nil {
		return nil, err
	}

	res, err := s.mintSession(ctx, user, identity.Provider, ip, userAgent)
	if err != nil {
		return nil, autherr.Wrap(autherr.Internal, "create session", err)
	}
	return res, nil
}

func (s *AuthService) resolveFederatedUser(ctx context.Context, identity *oidc.Identity, ip string) (*models.User, error) {
	usersRepo := s.repos.Users(s.db)

	user, err := usersRepo.GetByOIDCSubject(ctx, string(identity.Provider), identity.Subject)
	if err == nil {
		s.recordAudit(ctx, models.AuditLoginSuccess, models.AuditStatusOK, user.ID, user.Email, ip, map[string]string{"provider": string(identity.Provider)})
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, autherr.Wrap(autherr.Internal, "load user by subject", err)
	}

	// Linking and account creation both trust the provider's email claim,
	// so an unverified email stops here.
	if !identity.EmailVerified {
		return nil, autherr.E(autherr.Unauthorized, "email address is not verified with the identity provider")
	}

	email := normalizeEmail(identity.Email)
	user, err = usersRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := usersRepo.LinkOIDC(ctx, user.ID, string(identity.Provider), identity.Subject); err != nil {
			return nil, autherr.Wrap(autherr.Internal, "link federated identity", err)
		}
		user.OIDCProvider = string(identity.Provider)
		user.OIDCSubject = identity.Subject
		s.recordAudit(ctx, models.AuditOAuthLinked, models.AuditStatusOK, user.ID, email, ip, map[string]string{"provider": string(identity.Provider)})
		return user, nil
	case errors.Is(err, common.ErrorNotFound):
		user, err = usersRepo.Create(ctx, &models.User{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         identity.Name,
			OIDCProvider: string(identity.Provider),
			OIDCSubject:  identity.Subject,
		})
		if err != nil {
			return nil, autherr.Wrap(autherr.Internal, "create user", err)
		}
		s.recordAudit(ctx, models.AuditSignup, models.AuditStatusOK, user.ID, email, ip, map[string]string{"provider": string(identity.Provider)})
		return user, nil
	default:
		return nil, autherr.Wrap(autherr.Internal, "load user by email", err)
	}
}

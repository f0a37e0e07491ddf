// Package oidc implements the relying-party side of the federated sign-in
// handshake: authorization-code flow with PKCE, single-use persisted state,
// and strict claim validation of the returned identity token.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"credgate/internal/common"
	"credgate/internal/models"
)

// HandshakeTTL bounds how long a started handshake can be completed.
const HandshakeTTL = 10 * time.Minute

// ErrInvalidState reports a callback whose state is missing, expired, or
// already consumed. The three cases are deliberately indistinguishable.
var ErrInvalidState = errors.New("invalid or expired state")

// Config is the resolved provider configuration.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// fingerprint identifies a configuration for client-cache invalidation.
func (c Config) fingerprint() string {
	return c.IssuerURL + "|" + c.ClientID + "|" + c.ClientSecret + "|" + c.CallbackURL
}

// StateStore is the persistence port for handshake state rows.
type StateStore interface {
	Create(ctx context.Context, state *models.OidcHandshakeState) error
	TryClaim(ctx context.Context, provider, state string, now time.Time) (*models.OidcHandshakeState, error)
}

// StartResult is returned when a handshake begins.
type StartResult struct {
	AuthURL   string
	State     string
	ExpiresAt time.Time
}

// Identity is the normalized outcome of a completed handshake.
type Identity struct {
	Provider      models.AuthProvider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type providerClient struct {
	oauth2   oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

// Manager drives the two handshake transitions (start, complete) against one
// identity provider. The discovered provider client is cached and rebuilt
// only when the configuration fingerprint changes.
type Manager struct {
	provider models.AuthProvider
	resolve  func() Config
	store    StateStore
	now      func() time.Time

	mu     sync.Mutex
	fp     string
	client *providerClient

	// exchange is a seam for tests; production uses exchangeIdentity.
	exchange func(ctx context.Context, st *models.OidcHandshakeState, code string) (*Identity, error)
}

// NewManager builds a Manager for the given provider. resolve returns the
// currently effective configuration on each call.
func NewManager(provider models.AuthProvider, resolve func() Config, store StateStore) *Manager {
	m := &Manager{
		provider: provider,
		resolve:  resolve,
		store:    store,
		now:      time.Now,
	}
	m.exchange = m.exchangeIdentity
	return m
}

// Start generates state, nonce, and PKCE verifier, persists the handshake
// row, and returns the provider authorization URL.
func (m *Manager) Start(ctx context.Context, redirectURI, ip string) (*StartResult, error) {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	now := m.now()
	row := &models.OidcHandshakeState{
		ID:           uuid.NewString(),
		Provider:     m.provider,
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
		IP:           ip,
		ExpiresAt:    now.Add(HandshakeTTL),
		CreatedAt:    now,
	}
	if err := m.store.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persist handshake state: %w", err)
	}

	client, err := m.providerClient(ctx)
	if err != nil {
		return nil, err
	}
	authURL := client.oauth2.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		gooidc.Nonce(nonce),
	)
	return &StartResult{AuthURL: authURL, State: state, ExpiresAt: row.ExpiresAt}, nil
}

// Complete claims the handshake state exactly once and exchanges the
// authorization code for a verified identity.
func (m *Manager) Complete(ctx context.Context, code, state string) (*Identity, error) {
	st, err := m.store.TryClaim(ctx, string(m.provider), state, m.now())
	if err != nil {
		if errors.Is(err, common.ErrorNoRowsClaimed) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("claim handshake state: %w", err)
	}
	return m.exchange(ctx, st, code)
}

func (m *Manager) exchangeIdentity(ctx context.Context, st *models.OidcHandshakeState, code string) (*Identity, error) {
	client, err := m.providerClient(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := client.oauth2.Exchange(ctx, code, oauth2.VerifierOption(st.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response carries no id_token")
	}

	idToken, err := client.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != st.Nonce {
		return nil, errors.New("id_token nonce mismatch")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	return identityFromClaims(m.provider, claims)
}

// identityFromClaims validates the sub and email claims strictly: absent or
// non-string values fail instead of degrading.
func identityFromClaims(provider models.AuthProvider, claims map[string]any) (*Identity, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("id_token missing sub claim")
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, errors.New("id_token missing email claim")
	}

	verified, _ := claims["email_verified"].(bool)
	name, _ := claims["name"].(string)
	if name == "" {
		name = email
	}
	return &Identity{
		Provider:      provider,
		Subject:       sub,
		Email:         email,
		EmailVerified: verified,
		Name:          name,
	}, nil
}

// providerClient returns the cached client, rebuilding it when the resolved
// configuration fingerprint changed.
func (m *Manager) providerClient(ctx context.Context) (*providerClient, error) {
	cfg := m.resolve()
	fp := cfg.fingerprint()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.fp == fp {
		return m.client, nil
	}

	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover issuer: %w", err)
	}
	client := &providerClient{
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}
	m.client = client
	m.fp = fp
	return client, nil
}

package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"credgate/internal/common"
	"credgate/internal/models"
)

// fakeStateStore is an in-memory StateStore with the same one-shot claim
// semantics as the Postgres repository.
type fakeStateStore struct {
	mu   sync.Mutex
	rows map[string]*models.OidcHandshakeState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{rows: make(map[string]*models.OidcHandshakeState)}
}

func (s *fakeStateStore) Create(ctx context.Context, st *models.OidcHandshakeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[string(st.Provider)+"|"+st.State] = st
	return nil
}

func (s *fakeStateStore) TryClaim(ctx context.Context, provider, state string, now time.Time) (*models.OidcHandshakeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[provider+"|"+state]
	if !ok || row.ConsumedAt != nil || !row.ExpiresAt.After(now) {
		return nil, common.ErrorNoRowsClaimed
	}
	consumed := now
	row.ConsumedAt = &consumed
	return row, nil
}

// newDiscoveryServer serves a minimal OpenID discovery document so the
// manager can build a provider client without the real issuer.
func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	})
	return srv
}

func newTestManager(t *testing.T, store StateStore) (*Manager, *httptest.Server) {
	t.Helper()
	srv := newDiscoveryServer(t)
	cfg := Config{
		IssuerURL:    srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://app.example.com/api/auth/oidc/google/callback",
	}
	return NewManager(models.ProviderGoogle, func() Config { return cfg }, store), srv
}

func TestStart_BuildsAuthorizationURL(t *testing.T) {
	store := newFakeStateStore()
	m, srv := newTestManager(t, store)

	res, err := m.Start(context.Background(), "", "1.2.3.4")
	require.NoError(t, err)
	require.NotEmpty(t, res.State)
	require.WithinDuration(t, time.Now().Add(HandshakeTTL), res.ExpiresAt, time.Minute)

	u, err := url.Parse(res.AuthURL)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("nonce"))
	require.Equal(t, res.State, q.Get("state"))

	// The persisted row carries the verifier for the later exchange.
	row, err := store.TryClaim(context.Background(), "google", res.State, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, row.CodeVerifier)
	require.Equal(t, "1.2.3.4", row.IP)
}

func TestComplete_ClaimsStateExactlyOnce(t *testing.T) {
	store := newFakeStateStore()
	m, _ := newTestManager(t, store)

	// Stub the provider exchange; this test is about state consumption.
	m.exchange = func(ctx context.Context, st *models.OidcHandshakeState, code string) (*Identity, error) {
		return &Identity{Provider: models.ProviderGoogle, Subject: "sub-1", Email: "a@example.com", Name: "A"}, nil
	}

	res, err := m.Start(context.Background(), "", "")
	require.NoError(t, err)

	id, err := m.Complete(context.Background(), "auth-code", res.State)
	require.NoError(t, err)
	require.Equal(t, "sub-1", id.Subject)

	_, err = m.Complete(context.Background(), "auth-code", res.State)
	require.ErrorIs(t, err, ErrInvalidState, "second completion with the same state must fail")
}

func TestComplete_ExpiredState(t *testing.T) {
	store := newFakeStateStore()
	m, _ := newTestManager(t, store)
	m.exchange = func(ctx context.Context, st *models.OidcHandshakeState, code string) (*Identity, error) {
		t.Fatal("exchange must not run for expired state")
		return nil, nil
	}

	res, err := m.Start(context.Background(), "", "")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(HandshakeTTL + time.Minute) }
	_, err = m.Complete(context.Background(), "auth-code", res.State)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_UnknownState(t *testing.T) {
	m, _ := newTestManager(t, newFakeStateStore())
	_, err := m.Complete(context.Background(), "auth-code", "never-issued")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestIdentityFromClaims_Strictness(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]any
		ok     bool
	}{
		{"complete", map[string]any{"sub": "s", "email": "a@example.com", "email_verified": true, "name": "A"}, true},
		{"name falls back to email", map[string]any{"sub": "s", "email": "a@example.com"}, true},
		{"missing sub", map[string]any{"email": "a@example.com"}, false},
		{"missing email", map[string]any{"sub": "s"}, false},
		{"non-string sub", map[string]any{"sub": 42, "email": "a@example.com"}, false},
		{"non-string email", map[string]any{"sub": "s", "email": true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := identityFromClaims(models.ProviderGoogle, tc.claims)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if _, has := tc.claims["name"]; !has {
				require.Equal(t, id.Email, id.Name)
			}
		})
	}
}

func TestProviderClient_CachedByFingerprint(t *testing.T) {
	srv := newDiscoveryServer(t)

	cfg := Config{IssuerURL: srv.URL, ClientID: "a", ClientSecret: "s", CallbackURL: "cb"}
	m := NewManager(models.ProviderGoogle, func() Config { return cfg }, newFakeStateStore())

	c1, err := m.providerClient(context.Background())
	require.NoError(t, err)
	c2, err := m.providerClient(context.Background())
	require.NoError(t, err)
	require.Same(t, c1, c2, "same fingerprint must reuse the client")

	cfg.ClientID = "b"
	c3, err := m.providerClient(context.Background())
	require.NoError(t, err)
	require.NotSame(t, c1, c3, "changed fingerprint must rebuild the client")
	require.Equal(t, "b", c3.oauth2.ClientID)
}

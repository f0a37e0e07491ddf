package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"credgate/internal/common"
	"credgate/internal/dbx"
	"credgate/internal/models"
	"credgate/internal/repositories/audit"
	"credgate/internal/repositories/oidcstates"
	"credgate/internal/repositories/refreshtokens"
	"credgate/internal/repositories/resettokens"
	"credgate/internal/repositories/sessions"
	"credgate/internal/repositories/users"
)

// fakeRepoManager keeps every entity in memory so service flows can be
// exercised without Postgres. The DBTX handed in by the service is ignored;
// the fakes share state regardless of transaction boundaries.
type fakeRepoManager struct {
	mu sync.Mutex

	users       map[string]*models.User
	sessions    map[string]*models.LoginSession
	refresh     map[string]*models.RefreshToken // keyed by token hash
	resetTokens map[string]*models.PasswordResetToken
	states      map[string]*models.OidcHandshakeState
	events      []*models.AuthAuditEvent

	// createUserErr, when set, fails the next user create.
	createUserErr error
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       map[string]*models.User{},
		sessions:    map[string]*models.LoginSession{},
		refresh:     map[string]*models.RefreshToken{},
		resetTokens: map[string]*models.PasswordResetToken{},
		states:      map[string]*models.OidcHandshakeState{},
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository {
	return &fakeUsers{m: m}
}

func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository {
	return &fakeSessions{m: m}
}

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &fakeRefreshTokens{m: m}
}

func (m *fakeRepoManager) OidcStates(db dbx.DBTX) oidcstates.Repository {
	return &fakeOidcStates{m: m}
}

func (m *fakeRepoManager) ResetTokens(db dbx.DBTX) resettokens.Repository {
	return &fakeResetTokens{m: m}
}

func (m *fakeRepoManager) Audit(db dbx.DBTX) audit.Repository {
	return &fakeAudit{m: m}
}

func (m *fakeRepoManager) auditEvents(event string) []*models.AuthAuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuthAuditEvent
	for _, e := range m.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeUsers struct{ m *fakeRepoManager }

func (f *fakeUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.createUserErr != nil {
		err := f.m.createUserErr
		f.m.createUserErr = nil
		return nil, err
	}
	for _, u := range f.m.users {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	f.m.users[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByOIDCSubject(ctx context.Context, provider, subject string) (*models.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if u.OIDCProvider == provider && u.OIDCSubject == subject {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) LinkOIDC(ctx context.Context, userID, provider, subject string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.OIDCProvider = provider
	u.OIDCSubject = subject
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(ctx context.Context, userID, hash string) (int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[userID]
	if !ok {
		return 0, common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.PasswordGeneration++
	return u.PasswordGeneration, nil
}

func (f *fakeUsers) Delete(ctx context.Context, userID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.users[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(f.m.users, userID)
	return nil
}

type fakeSessions struct{ m *fakeRepoManager }

func (f *fakeSessions) Create(ctx context.Context, session *models.LoginSession) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *session
	f.m.sessions[cp.ID] = &cp
	return nil
}

func (f *fakeSessions) FindActiveByID(ctx context.Context, id string, now time.Time) (*models.LoginSession, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.sessions[id]
	if !ok || !s.Active(now) {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) TouchByID(ctx context.Context, id string, now time.Time) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if s, ok := f.m.sessions[id]; ok {
		s.LastSeenAt = now
	}
	return nil
}

func (f *fakeSessions) RevokeByID(ctx context.Context, id string, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return 0, nil
	}
	t := now
	s.RevokedAt = &t
	return 1, nil
}

func (f *fakeSessions) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, s := range f.m.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := now
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

type fakeRefreshTokens struct{ m *fakeRepoManager }

func (f *fakeRefreshTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *token
	f.m.refresh[cp.TokenHash] = &cp
	return nil
}

func (f *fakeRefreshTokens) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.refresh[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRefreshTokens) TryClaim(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.refresh[tokenHash]
	if !ok || t.UsedAt != nil || t.RevokedAt != nil || !t.ExpiresAt.After(now) {
		return nil, common.ErrorNoRowsClaimed
	}
	u := now
	t.UsedAt = &u
	cp := *t
	return &cp, nil
}

func (f *fakeRefreshTokens) RevokeForSession(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, t := range f.m.refresh {
		if t.SessionID == sessionID && t.RevokedAt == nil {
			r := now
			t.RevokedAt = &r
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshTokens) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, t := range f.m.refresh {
		s, ok := f.m.sessions[t.SessionID]
		if ok && s.UserID == userID && t.RevokedAt == nil {
			r := now
			t.RevokedAt = &r
			n++
		}
	}
	return n, nil
}

type fakeOidcStates struct{ m *fakeRepoManager }

func (f *fakeOidcStates) Create(ctx context.Context, state *models.OidcHandshakeState) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *state
	f.m.states[string(cp.Provider)+"|"+cp.State] = &cp
	return nil
}

func (f *fakeOidcStates) TryClaim(ctx context.Context, provider, state string, now time.Time) (*models.OidcHandshakeState, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	st, ok := f.m.states[provider+"|"+state]
	if !ok || st.ConsumedAt != nil || !st.ExpiresAt.After(now) {
		return nil, common.ErrorNoRowsClaimed
	}
	c := now
	st.ConsumedAt = &c
	cp := *st
	return &cp, nil
}

type fakeResetTokens struct{ m *fakeRepoManager }

func (f *fakeResetTokens) Create(ctx context.Context, token *models.PasswordResetToken) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *token
	f.m.resetTokens[cp.TokenHash] = &cp
	return nil
}

func (f *fakeResetTokens) TryClaim(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.resetTokens[tokenHash]
	if !ok || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return nil, common.ErrorNoRowsClaimed
	}
	u := now
	t.UsedAt = &u
	cp := *t
	return &cp, nil
}

func (f *fakeResetTokens) InvalidateForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, t := range f.m.resetTokens {
		if t.UserID == userID && t.UsedAt == nil {
			u := now
			t.UsedAt = &u
			n++
		}
	}
	return n, nil
}

type fakeAudit struct{ m *fakeRepoManager }

func (f *fakeAudit) Record(ctx context.Context, event *models.AuthAuditEvent) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *event
	f.m.events = append(f.m.events, &cp)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // raw tokens, in order
	err  error
}

func (f *fakeMailer) SendPasswordResetEmail(ctx context.Context, email, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, token)
	return nil
}

type fakeOwnership struct{ owns bool }

func (f fakeOwnership) OwnsCollaborativeResources(ctx context.Context, userID string) (bool, error) {
	return f.owns, nil
}

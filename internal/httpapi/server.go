// Package httpapi exposes the auth service over HTTP. It owns routing, the
// JSON request/response envelopes, bearer authentication, and the
// rate-limit gate in front of the abusable endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"credgate/internal/config"
	"credgate/internal/logging"
	"credgate/internal/oidc"
	"credgate/internal/ratelimit"
	"credgate/internal/services"
)

// AuthService is the slice of the orchestration layer the handlers need.
// *services.AuthService satisfies it; tests substitute a fake.
type AuthService interface {
	SignUp(ctx context.Context, email, pw, name, ip, userAgent string) (*services.AuthResult, error)
	SignIn(ctx context.Context, email, pw, ip, userAgent string) (*services.AuthResult, error)
	PrincipalFromToken(ctx context.Context, raw string) (*services.Principal, error)
	GetUser(ctx context.Context, userID string) (*services.UserView, error)
	Rotate(ctx context.Context, rawRefresh, ip string) (*services.RotateResult, error)
	SignOut(ctx context.Context, userID, rawRefresh, ip string) error
	DeleteUser(ctx context.Context, userID, ip string) error
	OIDCStart(ctx context.Context, ip string) (*oidc.StartResult, error)
	OIDCComplete(ctx context.Context, code, state, ip, userAgent string) (*services.AuthResult, error)
	RequestPasswordReset(ctx context.Context, email, ip string) error
	ResetPassword(ctx context.Context, rawToken, newPassword, ip string) error
}

// Server wires handlers, middleware, and the rate limiters into a router.
type Server struct {
	svc        AuthService
	log        logging.Logger
	ipLimit    *ratelimit.Limiter
	identLimit *ratelimit.Limiter
}

// NewServer builds the HTTP layer over svc with limits from cfg.
func NewServer(cfg *config.Config, svc AuthService, log logging.Logger) *Server {
	return &Server{
		svc:        svc,
		log:        log,
		ipLimit:    ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMaxPerIP),
		identLimit: ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMaxPerIdent),
	}
}

// PruneLoop drops dead limiter buckets on a ticker until ctx is cancelled,
// so one-off client keys do not accumulate for the life of the process.
func (s *Server) PruneLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.ipLimit.Prune(now)
			s.identLimit.Prune(now)
		}
	}
}

// Router returns the configured route tree.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/auth").Subrouter()

	api.Handle("/signup", s.rateGate(http.HandlerFunc(s.handleSignUp))).Methods(http.MethodPost)
	api.Handle("/signin", s.rateGate(http.HandlerFunc(s.handleSignIn))).Methods(http.MethodPost)
	api.Handle("/refresh", s.rateGate(http.HandlerFunc(s.handleRefresh))).Methods(http.MethodPost)
	api.Handle("/signout", s.requireAuth(s.handleSignOut)).Methods(http.MethodPost)

	api.Handle("/me", s.requireAuth(s.handleMe)).Methods(http.MethodGet)
	api.Handle("/me", s.requireAuth(s.handleDeleteMe)).Methods(http.MethodDelete)

	api.HandleFunc("/oidc/google/start", s.handleOIDCStart).Methods(http.MethodGet)
	api.HandleFunc("/oidc/google/callback", s.handleOIDCCallback).Methods(http.MethodGet)

	api.Handle("/password-reset/request", s.rateGate(http.HandlerFunc(s.handleResetRequest))).Methods(http.MethodPost)
	api.HandleFunc("/password-reset/confirm", s.handleResetConfirm).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

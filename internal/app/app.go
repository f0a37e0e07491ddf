// Package app initializes and runs the auth server. It loads configuration,
// opens the database and applies migrations, wires the service layer and
// HTTP surface, and handles graceful shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credgate/internal/config"
	"credgate/internal/httpapi"
	"credgate/internal/logging"
	"credgate/internal/mail"
	"credgate/internal/models"
	"credgate/internal/oidc"
	"credgate/internal/password"
	"credgate/internal/repositories/repomanager"
	"credgate/internal/services"
	"credgate/internal/token"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of a running server.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
	server *http.Server
}

// NewApp wires the application from configuration. The database is opened,
// pinged, and migrated before anything else starts.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := repomanager.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec([]byte(cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	var oidcMgr *oidc.Manager
	if cfg.OIDCEnabled() {
		oidcMgr = oidc.NewManager(models.ProviderGoogle, func() oidc.Config {
			return oidc.Config{
				IssuerURL:    cfg.OIDCIssuerURL,
				ClientID:     cfg.OIDCClientID,
				ClientSecret: cfg.OIDCClientSecret,
				CallbackURL:  cfg.OIDCCallbackURL,
			}
		}, repos.OidcStates(db))
	}

	var mailer mail.Mailer
	if cfg.MailEnabled() {
		mailer = mail.NewLogMailer(logger.With("component", "mailer"))
	}

	svc := services.NewAuthService(cfg, db, repos, hasher, codec, oidcMgr, mailer, nil, logger)
	api := httpapi.NewServer(cfg, svc, logger)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		api:    api,
		server: &http.Server{
			Addr:              cfg.EndpointAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a signal arrives, then shuts the
// HTTP server down gracefully and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	go app.api.PruneLoop(ctx, app.config.RateLimitWindow)

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
	}
	return app.db.Close()
}

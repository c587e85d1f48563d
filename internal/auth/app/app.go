package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/geo"
	httpapi "github.com/luminara-labs/storefront-auth/internal/auth/http"
	"github.com/luminara-labs/storefront-auth/internal/auth/provider"
	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/internal/auth/store/drivers/sqlite"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the auth service together: store, services, HTTP.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	tokenService        *service.TokenService
	mfaService          *service.MFAService
	sessionService      *service.SessionService
	loginThrottle       *service.LoginThrottle
	recoveryThrottle    *service.RecoveryThrottle
	authService         *service.AuthService
	gate                *service.AuthGate
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New builds an Application with every dependency initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "storefront-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sessionService.Start()
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops the server, the background workers, and the database, in
// that order so nothing writes to a closed store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.sessionService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() error {
	key, err := ResolveSigningKey(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.tokenService, err = service.NewTokenService(
		key,
		app.cfg.Issuer,
		[]string{app.cfg.Audience},
		app.cfg.SessionTTL,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	var resolver geo.Resolver = geo.NoopResolver{}
	if app.cfg.GeoURL != "" {
		resolver = geo.NewHTTPResolver(app.cfg.GeoURL)
	}
	app.sessionService = service.NewSessionService(app.db, resolver, app.cfg.SessionTTL, app.logger)

	app.loginThrottle = &service.LoginThrottle{
		Store:         app.db,
		LockThreshold: app.cfg.LockThreshold,
		FailureWindow: app.cfg.FailureWindow,
		LockDuration:  app.cfg.LockDuration,
	}
	app.recoveryThrottle = &service.RecoveryThrottle{
		Store:     app.db,
		Threshold: app.cfg.RecoveryThreshold,
		Block:     app.cfg.RecoveryBlock,
	}

	var verifier service.CredentialVerifier = provider.DenyAllVerifier{}
	if app.cfg.ProviderURL != "" {
		verifier = provider.NewHTTPVerifier(app.cfg.ProviderURL)
	} else {
		app.logger.Warn("AUTH_PROVIDER_URL is not set; all logins will be refused")
	}

	app.authService = &service.AuthService{
		Store:    app.db,
		Verifier: verifier,
		Tokens:   app.tokenService,
		MFA:      app.mfaService,
		Sessions: app.sessionService,
		Throttle: app.loginThrottle,
		Recovery: app.recoveryThrottle,
	}
	app.gate = &service.AuthGate{
		Tokens:   app.tokenService,
		Sessions: app.sessionService,
		Store:    app.db,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

func (app *Application) initHTTP() {
	// Dev runs plain http from another origin, so the cookie stays Lax and
	// insecure; everywhere else it is Secure and Strict.
	cookieOpts := httpapi.CookieOptions{
		Secure:   app.cfg.Env != "dev",
		SameSite: http.SameSiteStrictMode,
		Domain:   app.cfg.CookieDomain,
	}
	if app.cfg.Env == "dev" {
		cookieOpts.SameSite = http.SameSiteLaxMode
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, cookieOpts)
	router.Gate = app.gate
	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.Sessions = app.sessionService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

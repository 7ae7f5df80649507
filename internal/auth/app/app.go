// Package app is the composition root: it builds every dependency explicitly
// and hands them to the HTTP layer. Nothing in the codebase reaches for a
// global singleton.
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

	"github.com/edugate/edugate/internal/auth/csrf"
	httpapi "github.com/edugate/edugate/internal/auth/http"
	"github.com/edugate/edugate/internal/auth/mfa"
	"github.com/edugate/edugate/internal/auth/ratelimit"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/internal/auth/store/drivers/sqlite"
	"github.com/edugate/edugate/pkg/kvstore"
	"github.com/edugate/edugate/pkg/slogx"

	"github.com/redis/go-redis/v9"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache kvstore.Store

	tokenService        *service.TokenService
	userService         *service.UserService
	securityLogService  *service.SecurityLogService
	monitorService      *service.MonitorService
	housekeepingService *service.HousekeepingService
	csrfService         *csrf.Service
	limiter             *ratelimit.Limiter

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "edugate-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.monitorService.Start()

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

// Shutdown gracefully shuts down the application.
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

	app.monitorService.Stop()
	app.housekeepingService.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initCache picks the key/value backend: a resilient remote cache when
// REDIS_URL is set, otherwise a purely in-process store. Either way the rest
// of the application sees the same interface.
func (app *Application) initCache() error {
	if app.cfg.RedisURL == "" {
		app.cache = kvstore.NewMemoryWithSweep(time.Minute)
		app.logger.Info("using in-process cache (single-instance mode)")
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	app.cache = kvstore.NewResilient(redis.NewClient(opts), app.logger, app.cfg.CacheProbeInterval)
	app.logger.Info("using remote cache with in-process fallback", "addr", opts.Addr)
	return nil
}

func (app *Application) initServices() {
	app.securityLogService = &service.SecurityLogService{Store: app.db}

	app.tokenService = service.NewTokenService(app.db, app.securityLogService, service.TokenConfig{
		AccessSecret:  []byte(app.cfg.AccessTokenSecret),
		RefreshSecret: []byte(app.cfg.RefreshTokenSecret),
		Issuer:        app.cfg.Issuer,
		Audience:      app.cfg.Audience,
		AccessTTL:     app.cfg.AccessTokenTTL,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
	})

	var mfaProvider mfa.Provider = mfa.Disabled{}
	if app.cfg.MFAEnabled {
		mfaProvider = &mfa.TOTPProvider{Issuer: app.cfg.Issuer}
	}

	app.userService = &service.UserService{
		Store:  app.db,
		Cache:  app.cache,
		Tokens: app.tokenService,
		Audit:  app.securityLogService,
		MFA:    mfaProvider,
	}

	app.csrfService = &csrf.Service{Cache: app.cache}
	app.limiter = &ratelimit.Limiter{Cache: app.cache}

	app.monitorService = service.NewMonitorService(
		app.db, app.securityLogService, app.logger, app.cfg.MonitorInterval)
	app.housekeepingService = service.NewHousekeepingService(
		app.db, app.logger, app.cfg.HousekeepingInterval, app.cfg.EventRetention)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.cache, app.logger)
	router.CSRFEnforce = app.cfg.CSRFEnforce
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.SecurityLog = app.securityLogService
	router.Monitor = app.monitorService
	router.CSRF = app.csrfService
	router.Limiter = app.limiter
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

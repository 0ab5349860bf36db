package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/quizforge/quizauth/internal/authd/http"
	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/internal/authd/store/drivers/redisstore"
	"github.com/quizforge/quizauth/internal/authd/store/drivers/sqlite"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/jwtx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the auth service together: store, services, router,
// and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	redisClient *redis.Client
	attempts    httpx.AttemptStore

	authService  *service.AuthService
	guardService *service.GuardService
	housekeeping *service.Housekeeping

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "quizauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSigner([]byte(cfg.SigningSecret), cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices(signer)
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start(context.Background())

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains in-flight requests, then stops housekeeping and closes
// the store.
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

	app.housekeeping.Stop()

	if closer, ok := app.attempts.(interface{ Close() }); ok {
		closer.Close()
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens SQLite, applies migrations, and layers Redis on top
// when configured.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	app.db = db
	app.attempts = httpx.NewMemoryAttemptStore(time.Minute)

	if app.cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("parse redis url: %w", err)
	}
	app.redisClient = redis.NewClient(opts)

	// Shared state moves to Redis so every instance sees the same token
	// blacklist and login attempt counts.
	app.db = store.WithBlacklist(db, redisstore.NewBlacklist(app.redisClient))
	app.attempts = redisstore.NewAttemptStore(app.redisClient)
	app.logger.Info("redis connected, blacklist and login limiter are shared")

	return nil
}

func (app *Application) initServices(signer *jwtx.Signer) {
	app.authService = &service.AuthService{
		Store:         app.db,
		Signer:        signer,
		AccessTTL:     app.cfg.AccessTokenTTL,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
		IdleTTL:       app.cfg.IdleTimeout,
		StrictIPCheck: app.cfg.StrictIPCheck,
	}

	app.guardService = &service.GuardService{
		Store:   app.db,
		Signer:  signer,
		IdleTTL: app.cfg.IdleTimeout,
		Auth:    app.authService,
	}

	app.housekeeping = &service.Housekeeping{
		Store:    app.db,
		Logger:   app.logger,
		Interval: app.cfg.HousekeepingInterval,
		IdleTTL:  app.cfg.IdleTimeout,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, app.cfg.CookieSecure)
	router.AuthService = app.authService
	router.Guard = app.guardService
	router.Attempts = app.attempts
	router.LoginLimit = httpx.LoginLimitConfig{
		Limit:  app.cfg.LoginAttemptLimit,
		Window: app.cfg.LoginAttemptWindow,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/channel"
	httpapi "github.com/halcyonsec/authcore/internal/authcore/http"
	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/internal/authcore/store/drivers/sqlite"
	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/halcyonsec/authcore/pkg/jwtx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application bundles the wired service with its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyring    *cryptox.Keyring
	keyManager *jwtx.KeyManager
	auditor    *audit.Dispatcher

	credentialService   *service.CredentialService
	riskService         *service.RiskService
	challengeService    *service.ChallengeService
	tokenService        *service.TokenService
	sessionService      *service.SessionService
	authService         *service.AuthService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initKeyring(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	keyManager, err := jwtx.NewKeyManager(app.cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}
	app.keyManager = keyManager

	app.auditor = audit.NewDispatcher(audit.SlogSink{Logger: app.logger}, app.cfg.AuditBuffer)

	app.initServices()

	// Load persisted signing keys, minting the first on a fresh database.
	if err := app.keyRotationService.Bootstrap(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to bootstrap signing keys: %w", err)
	}
	app.logger.Info("signing keys ready", "active_kids", app.keyManager.ActiveKIDs())

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("authcore starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown drains in-flight requests, stops background work, and closes the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authcore...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.auditor.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authcore stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

// initKeyring loads the master key material that seals MFA seeds and signing
// keys at rest. Without a configured file the keyring is random per boot and
// nothing sealed survives a restart; fine for dev, announced loudly.
func (app *Application) initKeyring() error {
	var material []byte

	if app.cfg.MasterKeyFile != "" {
		data, err := os.ReadFile(app.cfg.MasterKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read master key file: %w", err)
		}
		material = data
	} else {
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
		app.logger.Warn("no master key file configured; sealed secrets will not survive a restart")
	}

	keyring, err := cryptox.NewKeyring(material)
	if err != nil {
		return fmt.Errorf("failed to initialize keyring: %w", err)
	}
	app.keyring = keyring
	return nil
}

func (app *Application) initServices() {
	app.credentialService = &service.CredentialService{
		Store:            app.db,
		Audit:            app.auditor,
		LockoutThreshold: app.cfg.LockoutThreshold,
		LockoutWindow:    app.cfg.LockoutWindow,
	}
	app.riskService = &service.RiskService{}
	app.challengeService = &service.ChallengeService{
		Store:       app.db,
		Keyring:     app.keyring,
		Channel:     &channel.LogDispatcher{Logger: app.logger},
		Audit:       app.auditor,
		TTL:         app.cfg.ChallengeTTL,
		MaxAttempts: app.cfg.ChallengeAttempts,
	}
	app.tokenService = &service.TokenService{
		Store:      app.db,
		KeyManager: app.keyManager,
		Risk:       app.riskService,
		Credential: app.credentialService,
		Audit:      app.auditor,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.sessionService = &service.SessionService{
		Store: app.db,
		Audit: app.auditor,
	}
	app.authService = &service.AuthService{
		Credential: app.credentialService,
		Risk:       app.riskService,
		Challenge:  app.challengeService,
		Token:      app.tokenService,
	}
	app.keyRotationService = &service.KeyRotationService{
		Store:       app.db,
		Keyring:     app.keyring,
		KeyManager:  app.keyManager,
		Audit:       app.auditor,
		GracePeriod: app.cfg.KeyGracePeriod,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.ChallengeService = app.challengeService
	router.TokenService = app.tokenService
	router.SessionService = app.sessionService
	router.KeyRotationService = app.keyRotationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

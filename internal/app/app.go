package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/jwt"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/config"
	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/middleware"
	"github.com/simp-lee/ftthadmin/internal/module/auth"
	"github.com/simp-lee/ftthadmin/internal/module/inventory"
	"github.com/simp-lee/ftthadmin/internal/module/preference"
)

const (
	defaultWriteTimeout = 60 * time.Second
	defaultTokenExpiry  = 24 * time.Hour
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	tokens jwt.Service
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, writeTimeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, database, domain repositories, services, handlers,
// middleware, and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	if !cfg.Auth.Enabled {
		log.Warn("authentication disabled: every request acts as the anonymous operator")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	// 2. Setup database.
	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	// 3. AutoMigrate in debug mode only.
	if cfg.Server.Mode == gin.DebugMode {
		if err := autoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto migration completed")
	}

	// 4. Manual dependency injection: repository → service → handler.
	tokenExpiry := defaultTokenExpiry
	if cfg.Auth.TokenExpiry != "" {
		if tokenExpiry, err = time.ParseDuration(cfg.Auth.TokenExpiry); err != nil {
			return nil, fmt.Errorf("parse auth.token_expiry: %w", err)
		}
	}
	tokens, err := auth.NewTokenService(tokenSecret(&cfg.Auth, log.Logger), tokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("setup token service: %w", err)
	}
	defer func() {
		if !success {
			tokens.Close()
		}
	}()
	authSvc := auth.NewService(tokens, auth.NewUserRepository(db), tokenExpiry)
	prefSvc := preference.NewService(preference.NewPreferenceRepository(db))

	modules := []Module{
		auth.NewModule(auth.NewHandler(authSvc)),
		preference.NewModule(preference.NewHandler(prefSvc)),
		inventory.NewModule(db),
	}

	// 5. Create Gin engine with custom middleware (not gin.Default()).
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	corsConfig, err := resolveCORSConfig(cfg.Server.Mode, &cfg.Server.CORS)
	if err != nil {
		return nil, err
	}

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger),
		middleware.CORSWithConfig(corsConfig),
	)

	// 6. Register all routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules: modules,
		DB:      db,
		APIMiddleware: []gin.HandlerFunc{
			middleware.Auth(authSvc, middleware.AuthConfig{
				Enabled:     cfg.Auth.Enabled,
				PublicPaths: cfg.Auth.PublicPaths,
			}),
		},
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine: engine,
		db:     db,
		tokens: tokens,
		logger: log,
		cfg:    cfg,
	}, nil
}

// Handler exposes the configured engine, mainly for in-process tests.
func (a *App) Handler() http.Handler {
	return a.engine
}

func autoMigrate(db *gorm.DB) error {
	models := []any{&domain.User{}, &domain.Preference{}}
	models = append(models, inventory.Models()...)
	return db.AutoMigrate(models...)
}

// tokenSecret returns the configured signing secret. With auth disabled and no
// secret set, a random one is used; tokens then die with the process.
func tokenSecret(cfg *config.AuthConfig, log *slog.Logger) string {
	if cfg.JWTSecret != "" || cfg.Enabled {
		return cfg.JWTSecret
	}
	log.Debug("auth.jwt_secret unset, signing tokens with a per-process secret")
	return rand.Text() + rand.Text()
}

// resolveCORSConfig builds the CORS middleware settings from configuration.
// In release mode, when no allowlist is configured, cross-origin requests are denied.
func resolveCORSConfig(mode string, cfg *config.CORSConfig) (middleware.CORSConfig, error) {
	corsConfig := middleware.DefaultCORSConfig()

	switch {
	case len(cfg.AllowOrigins) > 0:
		corsConfig.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		corsConfig.AllowOrigins = []string{}
	}
	if len(cfg.AllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.AllowHeaders
	}
	corsConfig.AllowCredentials = cfg.AllowCredentials

	if cfg.MaxAge != "" {
		d, err := time.ParseDuration(cfg.MaxAge)
		if err != nil {
			return middleware.CORSConfig{}, fmt.Errorf("parse server.cors.max_age: %w", err)
		}
		corsConfig.MaxAge = strconv.Itoa(int(d.Seconds()))
	}

	return corsConfig, nil
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func writeTimeout(raw string) time.Duration {
	if raw == "" {
		return defaultWriteTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultWriteTimeout
	}
	return d
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout and closes the database
// connection.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, writeTimeout(a.cfg.Server.Timeout))

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.tokens != nil {
		a.tokens.Close()
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Error("database close error", slog.Any("error", err))
			} else {
				log.Info("database connection closed")
			}
		}
	}

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}

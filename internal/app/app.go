// Package app wires configuration, infrastructure, storage and the HTTP
// surface into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"licensegate/internal/auth"
	"licensegate/internal/config"
	"licensegate/internal/geo"
	"licensegate/internal/infrastructure"
	"licensegate/internal/license"
	custommw "licensegate/internal/middleware"
	"licensegate/internal/services"
	"licensegate/internal/store"
	handlers "licensegate/internal/transport/http"
)

const (
	AppName = "licensegate"
	Version = infrastructure.ServiceVersion
)

// Application is the dependency container for the license server.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.BBoltStore
	Geo           *geo.Resolver
	OTelProviders *infrastructure.OTelProviders

	AuthService  services.AuthService
	AdminService services.AdminService
	Evaluator    *license.Evaluator
}

// NewApplication builds the application from configuration. Every
// dependency is constructed here; nothing reaches for globals.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	resolver, err := geo.NewResolver(cfg.Geo.DatabasePath)
	if err != nil {
		logger.Warn("geolocation database unavailable, locations will be unknown",
			slog.String("path", cfg.Geo.DatabasePath),
			slog.String("error", err.Error()))
		resolver, _ = geo.NewResolver("")
	}

	secret, err := auth.LoadOrCreateSecret(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load token secret: %w", err)
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.TokenTTL)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         st,
		Geo:           resolver,
		OTelProviders: otelProviders,
		AuthService: services.NewAuthService(st, tokens, logger,
			cfg.Auth.MinUsernameLength, cfg.Auth.MinPasswordLength),
		AdminService: services.NewAdminService(st, logger),
		Evaluator:    license.NewEvaluator(st, resolver, logger),
	}

	app.setupRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// setupRouter configures the HTTP router. Middleware ordering: RequestID,
// RealIP, logging, recovery, timeout, security headers, CORS, rate limit.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.Timeout(a.Config.Server.RequestTimeout, a.Logger))
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.CORS(custommw.CORSConfig{AllowedOrigins: []string{"*"}}))
	r.Use(custommw.Compress(5))

	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	metrics, err := infrastructure.CreateValidationMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Error("failed to create validation metrics", slog.String("error", err.Error()))
	}

	validateHandler := handlers.NewValidateHandler(a.Evaluator, a.Logger, a.OTelProviders.Tracer, metrics)
	authHandler := handlers.NewAuthHandler(a.AuthService, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.AdminService, a.Logger)
	metaHandler := handlers.NewMetaHandler(Version, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/validate", validateHandler.Routes())
		r.Get("/license-types", metaHandler.LicenseTypes)
		r.Get("/status", metaHandler.Status)
		r.Get("/health", metaHandler.Health)

		r.Route("/admin", func(r chi.Router) {
			// Account endpoints authenticate themselves.
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/verify-token", authHandler.VerifyToken)
			r.Post("/update-password", authHandler.UpdatePassword)
			r.Get("/check-exists", authHandler.CheckExists)

			r.Route("/licenses", func(r chi.Router) {
				r.Use(custommw.AdminAuth(a.AuthService))
				r.Mount("/", adminHandler.Routes())
			})
		})
	})

	// Prometheus scrape endpoint.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// Run starts the server and blocks until SIGINT or SIGTERM, then performs a
// graceful shutdown.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.Logger.Info("signal received", slog.String("signal", sig.String()))
	}

	return a.Shutdown(context.Background())
}

// Start runs the HTTP server. It blocks until the server stops.
func (a *Application) Start() error {
	a.Logger.Info("server listening", slog.String("addr", a.Server.Addr))
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources in reverse
// dependency order.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("otel shutdown: %w", err)
	}
	if err := a.Geo.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("geo close: %w", err)
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("store close: %w", err)
	}

	a.Logger.Info("shutdown complete")
	return firstErr
}

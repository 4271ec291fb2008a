package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/antikraj/plugin-license-server1/internal/config"
	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/infrastructure"
	"github.com/antikraj/plugin-license-server1/internal/license"
	customMiddleware "github.com/antikraj/plugin-license-server1/internal/middleware"
	"github.com/antikraj/plugin-license-server1/internal/security"
	"github.com/antikraj/plugin-license-server1/internal/services"
	"github.com/antikraj/plugin-license-server1/internal/storage"
	handlers "github.com/antikraj/plugin-license-server1/internal/transport/http"
	ws "github.com/antikraj/plugin-license-server1/internal/websocket"
	"github.com/antikraj/plugin-license-server1/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         license.Store
	Lifecycle     *license.Lifecycle
	Admin         *license.Admin
	WebSocketHub  *ws.Hub
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	ErrorHandler  *apierrors.ErrorHandler

	authenticator *security.Authenticator
	tokens        *security.TokenIssuer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	License services.LicenseService
	Admin   services.AdminService
	Auth    services.AuthService
	Health  services.HealthService
}

// Option customizes NewApplication.
type Option func(*Application)

// WithStore injects an already opened store instead of opening the
// configured backend.
func WithStore(store license.Store) Option {
	return func(a *Application) { a.Store = store }
}

// NewApplication wires the store, lifecycle, services and router for cfg.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("store_backend", cfg.Store.Backend))

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.ServiceName = cfg.Telemetry.ServiceName
	otelCfg.TraceExporter = cfg.Telemetry.TraceExporter
	otelCfg.EnableMetrics = cfg.Telemetry.MetricsEnabled
	otelProviders, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.initializeServices(ctx); err != nil {
		if app.Store != nil {
			app.Store.Close()
		}
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices opens the store and builds the license core and the
// services on top of it.
func (a *Application) initializeServices(ctx context.Context) error {
	if a.Store == nil {
		store, err := storage.Open(ctx, a.Config.Store, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open license store: %w", err)
		}
		a.Store = store
	}

	hub := ws.NewHub(ws.HubConfig{
		PingPeriod: a.Config.WebSocket.PingPeriod,
		PongWait:   a.Config.WebSocket.PongWait,
	}, a.Logger)
	if err := hub.WithMetrics(a.OTelProviders.Meter); err != nil {
		return fmt.Errorf("failed to initialize websocket metrics: %w", err)
	}
	a.WebSocketHub = hub

	metrics, err := license.InitializeMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize license metrics: %w", err)
	}
	if _, err := infrastructure.RegisterRuntimeMetrics(a.OTelProviders.Meter, time.Now()); err != nil {
		return fmt.Errorf("failed to initialize runtime metrics: %w", err)
	}

	licenseOpts := []license.Option{
		license.WithHeartbeatTimeout(a.Config.Lifecycle.HeartbeatTimeout),
		license.WithKeyGenerator(license.NewKeyGenerator(a.Config.Lifecycle.KeyLength)),
		license.WithEventSink(hub),
		license.WithMetrics(metrics),
		license.WithLogger(a.Logger),
	}
	a.Lifecycle = license.NewLifecycle(a.Store, licenseOpts...)
	a.Admin = license.NewAdmin(a.Store, licenseOpts...)

	a.authenticator, err = security.NewAuthenticator(a.Config.Security.AdminUser, a.Config.Security.AdminPasswordHash, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize admin authentication: %w", err)
	}
	a.tokens, err = security.NewTokenIssuer(a.Config.Security.JWTSecret, a.Config.Security.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	if !a.authenticator.Enabled() {
		a.Logger.WarnContext(ctx, "admin password hash not configured, admin endpoints only accept tokens and none can be issued")
	}
	if a.Config.Security.JWTSecret == "" {
		a.Logger.InfoContext(ctx, "no jwt secret configured, admin tokens will not survive a restart")
	}

	a.Services = &ServiceContainer{
		License: services.NewLicenseService(a.Lifecycle, a.Logger),
		Admin:   services.NewAdminService(a.Admin, a.Logger),
		Auth:    services.NewAuthService(a.authenticator, a.tokens, a.Logger),
		Health:  services.NewHealthService(a.Store, a.Config.Store.Backend, hub, a.Logger),
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	eh := a.ErrorHandler

	// RequestID → RealIP → OTel → Logger → Recoverer. None of these hide
	// http.Hijacker, so the event stream can share the stack.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(eh))
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			MaxAge:         600,
			Logger:         a.Logger,
		}))
	}

	r.NotFound(eh.NotFound)
	r.MethodNotAllowed(eh.MethodNotAllowed)

	home := handlers.ServeHome()
	r.Get("/", home)
	r.Head("/", home)
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	a.setupAPIRoutes(r)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	eh := a.ErrorHandler
	validation := customMiddleware.NewValidationMiddleware(a.Logger, eh)
	timeout := customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger)
	adminAuth := customMiddleware.AdminAuth(a.authenticator, a.tokens, eh, a.Logger)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	licenseHandler := handlers.NewLicenseHandler(a.Services.License, validation, eh, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Services.Admin, validation, eh, a.Logger)
	authHandler := handlers.NewAuthHandler(a.Services.Auth, validation, eh, a.Logger)
	eventsHandler := handlers.NewEventsHandler(a.WebSocketHub, ws.NewUpgrader(
		a.Config.WebSocket.ReadBufferSize,
		a.Config.WebSocket.WriteBufferSize,
		a.Config.Security.AllowedOrigins,
	), a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(apierrors.NewErrorMiddleware(eh, a.Logger).Handler)

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)

		// Client endpoints
		r.With(timeout, validation.ValidateRequest).
			Mount("/v1", licenseHandler.Routes())

		r.With(timeout, validation.ValidateRequest).
			Post("/v1/admin/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(customMiddleware.AuditLog(a.Logger))

			// No timeout: the stream outlives any request deadline.
			r.Get("/v1/admin/events", eventsHandler.ServeHTTP)

			r.With(timeout, validation.ValidateRequest).
				Mount("/v1/admin", adminHandler.Routes())
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Run listens on the configured address and serves until ctx is cancelled
// or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		a.Stop(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then stops the application.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "Application started successfully",
			slog.String("address", ln.Addr().String()),
			slog.String("store_backend", a.Config.Store.Backend),
			slog.Duration("heartbeat_timeout", a.Config.Lifecycle.HeartbeatTimeout),
			slog.Bool("admin_enabled", a.authenticator.Enabled()))

		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

var _ handlers.EventStream = (*ws.Hub)(nil)

// Package app wires the application together: configuration, logging,
// telemetry, storage, services and the HTTP server, plus graceful
// shutdown.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"licenseforge/internal/config"
	"licenseforge/internal/domain"
	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/infrastructure"
	"licenseforge/internal/middleware"
	"licenseforge/internal/services"
	"licenseforge/internal/store"
	transporthttp "licenseforge/internal/transport/http"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Application owns every long-lived component.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger
	otel   *infrastructure.OTelProviders
	store  store.Store

	licenseService    services.LicenseService
	activationService services.ActivationService

	server *http.Server
}

// New builds a fully wired application from configuration.
func New(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	app := &Application{cfg: cfg, logger: logger}

	if cfg.OTel.Enabled {
		app.otel, err = infrastructure.InitializeOTel(ctx, cfg.OTel)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
	}

	if err := app.initializeStore(); err != nil {
		return nil, err
	}
	app.initializeServices()
	app.server = app.createServer(app.setupRouter())

	logger.InfoContext(ctx, "application initialized",
		slog.String("version", Version),
		slog.String("addr", cfg.Addr()),
		slog.String("storage", cfg.Storage.Driver),
	)
	return app, nil
}

func (a *Application) initializeStore() error {
	switch a.cfg.Storage.Driver {
	case "postgres":
		s, err := store.NewPostgresStore(a.cfg.Storage.DSN, a.logger)
		if err != nil {
			return fmt.Errorf("initializing postgres store: %w", err)
		}
		a.store = s
	default:
		a.store = store.NewMemoryStore()
		a.logger.Warn("using in-memory storage, data will not survive restarts")
	}
	return nil
}

func (a *Application) initializeServices() {
	var metrics *infrastructure.BusinessMetrics
	if a.otel != nil {
		metrics = a.otel.Metrics
	}
	a.licenseService = services.NewLicenseService(a.store, domain.NewKeyGenerator(), a.logger, metrics)
	a.activationService = services.NewActivationService(a.store, a.logger)
}

func (a *Application) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(a.cfg.Server.AllowedOrigins))
	r.Use(middleware.RateLimiter(a.cfg.Limits.RequestsPerSecond, a.cfg.Limits.Burst))
	r.Use(middleware.Timeout(a.cfg.Server.RequestTimeout))

	errorHandler := apperrors.NewErrorHandler(a.logger)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	healthHandler := transporthttp.NewHealthHandler(a.store, Version)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Route("/v1", func(r chi.Router) {
			r.Mount("/licenses", transporthttp.NewLicenseHandler(a.licenseService, a.logger).Routes())
			r.Mount("/activations", transporthttp.NewActivationHandler(a.activationService, a.logger).Routes())
		})
	})

	if a.otel != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (a *Application) createServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}
}

// Handler exposes the composed HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the server and blocks until the context is cancelled or a
// termination signal arrives, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(gctx, "http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("stopping http server: %w", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stopping telemetry: %w", err)
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if firstErr != nil {
		return firstErr
	}
	a.logger.Info("shutdown complete")
	return nil
}

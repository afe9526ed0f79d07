package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kmjayadeep/baskit-sub000/internal/api"
	v0 "github.com/kmjayadeep/baskit-sub000/internal/api/v0"
	"github.com/kmjayadeep/baskit-sub000/internal/app/storage"
	"github.com/kmjayadeep/baskit-sub000/internal/auth"
	"github.com/kmjayadeep/baskit-sub000/internal/config"
	"github.com/kmjayadeep/baskit-sub000/internal/identity"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
	pkgsync "github.com/kmjayadeep/baskit-sub000/internal/sync"
	"github.com/kmjayadeep/baskit-sub000/internal/sync/lifecycle"
	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
	"github.com/kmjayadeep/baskit-sub000/internal/versions"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// defaultPublicPaths are paths that never require authentication
var defaultPublicPaths = []string{"/health", "/readiness", "/version"}

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig builds a SyncApp using the builder pattern.
// It supports dependency injection for testing while providing sensible
// defaults for production
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory *storage.Factory
	engine         pkgsync.Engine
	statusSvc      status.Persistence
	telemetry      *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Auth components
	authMiddleware func(http.Handler) http.Handler
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSyncApp creates a new sync daemon with the given configuration
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// The flag address wins over the config file address
	if cfg.address == "" {
		cfg.address = cfg.config.API.GetAddress()
	}

	// Telemetry first so every other component can record into it
	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx,
			telemetry.WithConfig(cfg.config.Telemetry),
			telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	// Create storage factory (single decision point for the store drivers)
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded && cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
	}()

	// Build sync components
	components, err := buildSyncComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	// Build auth middleware (if not injected)
	if cfg.authMiddleware == nil {
		var authErr error
		cfg.authMiddleware, authErr = auth.NewMiddleware(authConfig(cfg.config))
		if authErr != nil {
			return nil, fmt.Errorf("failed to build auth middleware: %w", authErr)
		}
	}

	// Build HTTP server
	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	cancelFunc := func() {
		// Stop the background loops before closing the stores under them
		cancel()
		if cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
	}

	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f *storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithEngine allows injecting a custom sync engine (for testing)
func WithEngine(e pkgsync.Engine) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.engine = e
		return nil
	}
}

// WithStatusPersistence allows injecting a custom status persistence (for testing)
func WithStatusPersistence(svc status.Persistence) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.statusSvc = svc
		return nil
	}
}

// WithTelemetry allows injecting preconfigured telemetry providers
func WithTelemetry(t *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// telemetryEnabled reports whether the exporting providers are
// configured. A disabled setup still carries noop providers.
func telemetryEnabled(c *config.Config) bool {
	return c.Telemetry != nil && c.Telemetry.Enabled
}

// authConfig extracts the auth block, nil when the API is open
func authConfig(c *config.Config) *config.AuthConfig {
	if c.API == nil {
		return nil
	}
	return c.API.Auth
}

// buildSyncComponents builds the identity provider, the sync engine,
// and the lifecycle controller around them
func buildSyncComponents(b *syncAppConfig) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	provider := identity.NewMemoryProvider()
	if b.config.Principal != nil && b.config.Principal.ID != "" {
		// Headless deployments fix the principal up front. The
		// lifecycle controller starts sync for it as soon as it runs.
		provider.Login(identity.Principal{ID: b.config.Principal.ID})
		slog.Info("Principal configured", "principal", b.config.Principal.ID)
	}

	if b.statusSvc == nil {
		b.statusSvc = status.NewFilePersistence(b.config.Sync.GetStatusFile())
	}

	if b.engine == nil {
		engineOpts := []pkgsync.Option{
			pkgsync.WithStatusPersistence(b.statusSvc),
		}

		if telemetryEnabled(b.config) {
			syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
			if err != nil {
				return nil, fmt.Errorf("failed to create sync metrics: %w", err)
			}
			engineOpts = append(engineOpts,
				pkgsync.WithSyncMetrics(syncMetrics),
				pkgsync.WithTracer(b.telemetry.TracerProvider().Tracer(telemetry.SyncTracerName)),
			)
			slog.Info("Sync telemetry enabled")
		}

		b.engine = pkgsync.New(
			b.storageFactory.LocalStore(),
			b.storageFactory.RemoteStore(),
			engineOpts...,
		)
	}

	controller := lifecycle.New(b.engine, provider)
	slog.Info("Sync components initialized successfully")

	return &AppComponents{
		Engine:    b.engine,
		Lifecycle: controller,
		Identity:  provider,
		Telemetry: b.telemetry,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *syncAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry middlewares go in front so they see every request,
	// including those rejected by auth
	if telemetryEnabled(b.config) {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		tracingMiddleware := telemetry.TracingMiddleware(b.telemetry.TracerProvider())
		b.middlewares = append(
			[]func(http.Handler) http.Handler{metricsMiddleware, tracingMiddleware},
			b.middlewares...,
		)
		slog.Info("HTTP telemetry middleware enabled")
	}

	// Create auth middleware that bypasses public paths
	publicPaths := defaultPublicPaths
	if ac := authConfig(b.config); ac != nil && len(ac.PublicPaths) > 0 {
		publicPaths = append(publicPaths, ac.PublicPaths...)
	}
	authMw := auth.WrapWithPublicPaths(b.authMiddleware, publicPaths)
	b.middlewares = append(b.middlewares, authMw)

	// Create router with middlewares
	router := api.NewServer(v0.Dependencies{
		Local:     b.storageFactory.LocalStore(),
		Engine:    components.Engine,
		Lifecycle: components.Lifecycle,
		Identity:  components.Identity,
		Status:    b.statusSvc,
	}, api.WithMiddlewares(b.middlewares...))

	// Create HTTP server
	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

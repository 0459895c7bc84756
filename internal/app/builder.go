package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/optimade-server/internal/api"
	"github.com/stacklok/optimade-server/internal/api/index"
	"github.com/stacklok/optimade-server/internal/config"
	"github.com/stacklok/optimade-server/internal/filtering"
	"github.com/stacklok/optimade-server/internal/httpclient"
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/queryparams"
	pkgsync "github.com/stacklok/optimade-server/internal/sync"
	"github.com/stacklok/optimade-server/internal/sync/coordinator"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultFetchTimeout   = 10 * time.Second

	instrumentationName = "github.com/stacklok/optimade-server"
)

// AppOption configures the OPTIMADE application
//
//nolint:revive // This name is fine
type AppOption func(*appConfig) error

type appConfig struct {
	config *config.Config

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	httpClient httpclient.Client
	telemetry  *telemetry.Telemetry
}

func baseConfig(opts ...AppOption) (*appConfig, error) {
	cfg := &appConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}

	return cfg, nil
}

// NewOptimadeApp builds the application: telemetry, the provider registry, the query
// parameter classifier, the link store, the providers refresh and the HTTP server.
func NewOptimadeApp(ctx context.Context, opts ...AppOption) (*OptimadeApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	tel := cfg.telemetry
	if tel == nil {
		tel, err = telemetry.New(ctx,
			telemetry.WithTelemetryConfig(cfg.config.Telemetry),
			telemetry.WithProviderPrefix(cfg.config.Provider.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	cleanupNeeded := cfg.telemetry == nil
	defer func() {
		if cleanupNeeded {
			if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to shut down telemetry", "error", err)
			}
		}
	}()

	registry, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}

	classifier := buildClassifier(cfg.config, registry)

	store := links.NewMemoryStore()
	manager, err := buildProvidersManager(ctx, cfg, registry, classifier, store, tel)
	if err != nil {
		return nil, fmt.Errorf("failed to build link store: %w", err)
	}

	syncCoordinator, err := buildSyncCoordinator(cfg.config, manager, tel)
	if err != nil {
		return nil, fmt.Errorf("failed to build providers refresh: %w", err)
	}

	components := &AppComponents{
		Sync:            manager,
		SyncCoordinator: syncCoordinator,
		Links:           store,
		Classifier:      classifier,
		Telemetry:       tel,
	}

	appCtx, cancel := context.WithCancel(ctx)
	app := &OptimadeApp{
		config:     cfg.config,
		components: components,
		ctx:        appCtx,
		cancelFunc: cancel,
	}

	httpServer, err := buildHTTPServer(cfg, components, app.ready)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}
	app.httpServer = httpServer

	cleanupNeeded = false
	return app, nil
}

// WithConfig sets the configuration. config.Default() is used when unset.
func WithConfig(c *config.Config) AppOption {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) AppOption {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not valid: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default request middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AppOption {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout sets the per request timeout
func WithRequestTimeout(d time.Duration) AppOption {
	return func(cfg *appConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithHTTPClient sets the client used to fetch the providers list
func WithHTTPClient(c httpclient.Client) AppOption {
	return func(cfg *appConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithTelemetry uses an already initialized Telemetry. The caller keeps ownership of it.
func WithTelemetry(t *telemetry.Telemetry) AppOption {
	return func(cfg *appConfig) error {
		cfg.telemetry = t
		return nil
	}
}

func (b *appConfig) providersClient() httpclient.Client {
	if b.httpClient == nil {
		b.httpClient = httpclient.NewRetryingClient(httpclient.NewDefaultClient(defaultFetchTimeout))
	}
	return b.httpClient
}

func buildProviders(ctx context.Context, b *appConfig) (*providers.Registry, error) {
	c := b.config
	opts := []providers.Option{
		providers.WithSupportedPrefixes(c.SupportedProviderPrefixes()...),
	}

	switch {
	case c.ProvidersPath != "":
		opts = append(opts, providers.WithFile(c.ProvidersPath))
	case c.ProvidersURL != "" && c.ProvidersURL != "-":
		opts = append(opts, providers.WithRemote(c.ProvidersURL, b.providersClient()))
	}

	registry, err := providers.Load(ctx, opts...)
	if err != nil {
		return nil, err
	}

	slog.Info("Providers loaded",
		"source", registry.Source(),
		"known", len(registry.Known()),
		"supported", registry.Supported(),
	)
	return registry, nil
}

// buildProvidersManager loads the index links and applies registry to classifier and store
func buildProvidersManager(
	ctx context.Context,
	b *appConfig,
	registry *providers.Registry,
	classifier *queryparams.Classifier,
	store *links.MemoryStore,
	tel *telemetry.Telemetry,
) (*pkgsync.ProvidersManager, error) {
	var base []links.Link
	if b.config.IndexLinksPath != "" {
		loaded, err := links.LoadFile(b.config.IndexLinksPath)
		if err != nil {
			return nil, err
		}
		base = loaded
	}

	var filter *filtering.NameFilter
	if b.config.InsertProviderLinks {
		var err error
		filter, err = filtering.NewNameFilter(b.config.ProviderLinks)
		if err != nil {
			return nil, fmt.Errorf("invalid providerLinks filter: %w", err)
		}
	}

	linksMetrics, err := telemetry.NewLinksMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create links metrics: %w", err)
	}

	opts := []pkgsync.Option{
		pkgsync.WithClassifier(classifier),
		pkgsync.WithLinkStore(store, base, filter),
		pkgsync.WithLinksMetrics(linksMetrics),
	}
	if b.config.RefreshInterval() > 0 {
		opts = append(opts, pkgsync.WithRemote(b.config.ProvidersURL, b.providersClient()))
	}
	manager := pkgsync.NewProvidersManager(ctx, registry, opts...)

	slog.Info("Links loaded", "path", b.config.IndexLinksPath, "count", len(base))
	return manager, nil
}

// buildSyncCoordinator returns nil when the providers list is not refreshed
func buildSyncCoordinator(
	c *config.Config,
	manager pkgsync.Manager,
	tel *telemetry.Telemetry,
) (coordinator.Coordinator, error) {
	interval := c.RefreshInterval()
	if interval == 0 {
		return nil, nil
	}

	syncMetrics, err := telemetry.NewSyncMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	slog.Info("Providers list refresh enabled", "url", c.ProvidersURL, "interval", interval)
	return coordinator.New(manager, interval, coordinator.WithSyncMetrics(syncMetrics)), nil
}

func buildClassifier(c *config.Config, registry *providers.Registry) *queryparams.Classifier {
	if !c.QueryValidationEnabled() {
		slog.Warn("Query parameter validation is disabled")
	}
	return queryparams.NewClassifier(
		queryparams.WithValidation(c.QueryValidationEnabled()),
		queryparams.WithSupportedPrefixes(registry.Supported()...),
		queryparams.WithProviderPrefixes(registry.Known()...),
	)
}

func buildHTTPServer(b *appConfig, components *AppComponents, ready func(context.Context) error) (*http.Server, error) {
	tel := components.Telemetry
	c := b.config

	paramMetrics, err := telemetry.NewQueryParamMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create query parameter metrics: %w", err)
	}

	var homepage *string
	if c.Provider.Homepage != "" {
		homepage = &c.Provider.Homepage
	}

	routes := index.NewRoutes(components.Links, components.Classifier,
		index.WithPageLimits(c.PageLimit, c.PageLimitMax),
		index.WithProvider(index.ProviderMeta{
			Name:        c.Provider.Name,
			Description: c.Provider.Description,
			Prefix:      c.Provider.Prefix,
			Homepage:    homepage,
		}),
		index.WithBaseURL(c.BaseURL),
		index.WithQueryParamMetrics(paramMetrics),
		index.WithTracer(tel.Tracer(instrumentationName)),
	)

	if b.middlewares == nil {
		metricsMw, err := telemetry.MetricsMiddleware(tel.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			telemetry.TracingMiddleware(tel.TracerProvider()),
			metricsMw,
			api.LoggingMiddleware,
		}
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAllowedOrigins(c.AllowedOrigins()...),
		api.WithReadiness(ready),
	}
	if h := tel.MetricsHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
	}

	router := api.NewServer(routes, serverOpts...)

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

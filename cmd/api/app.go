package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/keelwise/keel/internal/api/handlers"
	"github.com/keelwise/keel/internal/api/middleware"
	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/observability"
	"github.com/keelwise/keel/internal/repository"
	"github.com/keelwise/keel/internal/service"
	"github.com/keelwise/keel/pkg/cache"
	"github.com/keelwise/keel/pkg/database"
)

const analysisCachePrefix = "keel:"

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	redis          *redis.Client
	server         *http.Server
	meter          *observability.MeterSetup
	tracerProvider *sdktrace.TracerProvider
}

// collectors holds the metric collectors; every field is nil when metrics are disabled.
type collectors struct {
	cache        observability.CacheMetrics
	providers    observability.ProviderMetrics
	enhancements observability.EnhancementMetrics
	api          observability.APIMetrics
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure. On error everything
// opened so far is released.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{cfg: cfg}

	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	metrics, err := a.setupObservability(ctx)
	if err != nil {
		return nil, err
	}

	store, err := a.setupStore(ctx)
	if err != nil {
		return nil, err
	}

	analysisCache, err := a.setupCache(ctx)
	if err != nil {
		return nil, err
	}

	usage, err := observability.NewUsageTracker(a.otelMeter())
	if err != nil {
		return nil, fmt.Errorf("create usage tracker: %w", err)
	}

	guards, err := buildProviders(ctx, cfg, metrics.providers)
	if err != nil {
		return nil, err
	}

	ml := service.NewMLService(service.MLServiceParams{
		Providers:               guards,
		ProviderOrder:           cfg.ProviderOrder,
		FallbackEnabled:         cfg.FallbackEnabled,
		MinGenerationConfidence: cfg.Thresholds.MinGenerationConfidence,
		BreakerConfig:           breakerConfig(cfg),
		Cache:                   analysisCache,
		CacheMetrics:            metrics.cache,
		ProviderMetrics:         metrics.providers,
		Usage:                   usage,
		Logger:                  slog.Default(),
	})

	detector := service.NewPatternDetector(service.PatternDetectorParams{
		Analyzer:      ml,
		Store:         store,
		MinConfidence: cfg.Thresholds.MinPatternConfidence,
		Logger:        slog.Default(),
	})

	enhancer := service.NewResponseEnhancer(service.ResponseEnhancerParams{
		Generator:              ml,
		Store:                  store,
		MinConfidence:          cfg.Thresholds.MinEnhanceConfidence,
		MaxEnhancementsPerHour: cfg.Thresholds.MaxEnhancementsPerHour,
		Metrics:                metrics.enhancements,
		Logger:                 slog.Default(),
	})

	learning := service.NewLearningEngine(store, slog.Default())

	var pinger handlers.Pinger
	if a.db != nil {
		pinger = a.db
	}

	var metricsHandler http.Handler
	if a.meter != nil {
		metricsHandler = a.meter.Handler
	}

	a.server = newHTTPServer(cfg, routes{
		health:      handlers.NewHealthHandler(pinger),
		analysis:    handlers.NewAnalysisHandler(ml),
		enhancement: handlers.NewEnhancementHandler(detector, enhancer),
		feedback:    handlers.NewFeedbackHandler(learning),
		providers:   handlers.NewProvidersHandler(ml),
		metrics:     metricsHandler,
	}, metrics.api, a.meter, a.tracerProvider)

	slog.Info("keel initialized",
		"providers", len(guards),
		"fallback_enabled", cfg.FallbackEnabled,
		"cache_enabled", cfg.Cache.Enabled,
		"cache_backend", cfg.Cache.Backend,
		"persistent_store", a.db != nil,
	)

	return a, nil
}

// setupObservability creates meter and tracer providers for the configured exporters and
// the metric collectors. Collectors are all nil when metrics are disabled.
func (a *App) setupObservability(ctx context.Context) (collectors, error) {
	var out collectors

	if a.cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meter, err := observability.NewMeterProvider(ctx, a.cfg)
		if err != nil {
			return out, fmt.Errorf("create meter provider: %w", err)
		}

		a.meter = meter
	}

	if a.cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tp, err := observability.NewTracerProvider(ctx, a.cfg)
		if err != nil {
			return out, fmt.Errorf("create tracer provider: %w", err)
		}

		a.tracerProvider = tp
	}

	if a.tracerProvider != nil {
		otel.SetTracerProvider(a.tracerProvider)
	}

	if a.meter == nil {
		return out, nil
	}

	otel.SetMeterProvider(a.meter.Provider)

	m, err := observability.NewMetrics(a.meter.Meter())
	if err != nil {
		return out, fmt.Errorf("create metrics: %w", err)
	}

	out.cache = m.Cache
	out.providers = m.Providers
	out.enhancements = m.Enhancements
	out.api = m.API

	return out, nil
}

// otelMeter returns the keel meter, or nil when metrics are disabled.
func (a *App) otelMeter() metric.Meter {
	if a.meter == nil {
		return nil
	}

	return a.meter.Meter()
}

// setupStore opens Postgres when DATABASE_URL is set; otherwise rows live in memory.
func (a *App) setupStore(ctx context.Context) (service.Store, error) {
	if a.cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store (data is lost on restart)")

		return repository.NewMemoryStore(), nil
	}

	db, err := database.Open(ctx, a.cfg.DatabaseURL, a.cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a.db = db

	return repository.NewPostgresStore(db), nil
}

// setupCache returns the analysis cache, or nil when caching is disabled. Only complete
// analyses (no sub-analysis errors) are stored.
func (a *App) setupCache(ctx context.Context) (*cache.LoaderCache[*models.AnalysisResult], error) {
	cc := a.cfg.Cache
	if !cc.Enabled {
		return nil, nil //nolint:nilnil // nil cache disables caching
	}

	var backend cache.Backend[*models.AnalysisResult]

	switch cc.Backend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedisClient(ctx, cc.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}

		a.redis = client
		backend = cache.NewRedis[*models.AnalysisResult](client, analysisCachePrefix, cc.TTL)
	default:
		backend = cache.NewMemory[*models.AnalysisResult](cc.MaxEntries, cc.TTL)
	}

	return cache.NewLoaderCache(backend, cache.WithStorePredicate(func(r *models.AnalysisResult) bool {
		return r != nil && len(r.Errors) == 0
	})), nil
}

type routes struct {
	health      *handlers.HealthHandler
	analysis    *handlers.AnalysisHandler
	enhancement *handlers.EnhancementHandler
	feedback    *handlers.FeedbackHandler
	providers   *handlers.ProvidersHandler
	// metrics is the Prometheus scrape handler; nil unless OTEL_METRICS_EXPORTER=prometheus.
	metrics http.Handler
}

// newHTTPServer builds the HTTP server (no auth on /health and /metrics, API keys on /v1/).
// Handler chain: Metrics -> RequestID -> otelhttp -> Throttle -> MaxBody -> mux.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	apiMetrics observability.APIMetrics,
	meter *observability.MeterSetup,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", r.health.Check)

	if r.metrics != nil {
		public.Handle("GET /metrics", r.metrics)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/analyze", r.analysis.Analyze)
	protected.HandleFunc("POST /v1/patterns", r.enhancement.Detect)
	protected.HandleFunc("POST /v1/enhance", r.enhancement.Enhance)
	protected.HandleFunc("POST /v1/pipeline", r.enhancement.Pipeline)
	protected.HandleFunc("POST /v1/feedback", r.feedback.Create)
	protected.HandleFunc("GET /v1/feedback/stats/{user_id}", r.feedback.Stats)
	protected.HandleFunc("GET /v1/providers", r.providers.List)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(cfg.APIKeys)(protected))
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip tracing for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meter != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meter.Provider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var handler http.Handler = mux
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes, apiMetrics)(handler)
	handler = middleware.Throttle(middleware.NewClientThrottle(cfg.APIRateLimit, cfg.APIRateBurst), apiMetrics)(handler)
	handler = otelhttp.NewHandler(handler, "keel-api", otelOpts...)
	handler = middleware.RequestID(handler)
	handler = middleware.Metrics(apiMetrics)(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal) or the
// server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops accepting requests, then releases the store, cache and observability.
func (a *App) Shutdown(ctx context.Context) error {
	var err error

	if a.server != nil {
		if serr := a.server.Shutdown(ctx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			err = fmt.Errorf("server shutdown: %w", serr)
		}
	}

	if rerr := a.release(ctx); err == nil {
		err = rerr
	}

	return err
}

// release closes everything NewApp opened. Logs secondary errors, returns the first.
func (a *App) release(ctx context.Context) error {
	var errs []error

	if a.db != nil {
		a.db.Close()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := observability.ShutdownTracerProvider(ctx, a.tracerProvider); err != nil {
			errs = append(errs, err)
		}
	}

	if a.meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, a.meter); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	for _, err := range errs[1:] {
		slog.Error("shutdown", "error", err)
	}

	return errs[0]
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/similarity/internal/api/handlers"
	"github.com/formbricks/similarity/internal/api/middleware"
	"github.com/formbricks/similarity/internal/api/response"
	"github.com/formbricks/similarity/internal/config"
	"github.com/formbricks/similarity/internal/embeddings"
	"github.com/formbricks/similarity/internal/googleai"
	"github.com/formbricks/similarity/internal/observability"
	"github.com/formbricks/similarity/internal/ollama"
	"github.com/formbricks/similarity/internal/openai"
	"github.com/formbricks/similarity/internal/sentencetransformers"
	"github.com/formbricks/similarity/internal/service"
)

const serviceName = "similarity"

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	server         *http.Server
	embedder       service.EmbeddingClient
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

var errUnsupportedEmbeddingProvider = errors.New("unsupported embedding provider")

// remoteProviders call a third-party API and are subject to EMBEDDING_RATE_LIMIT.
var remoteProviders = map[string]struct{}{
	config.ProviderOpenAI: {},
	config.ProviderGoogle: {},
	config.ProviderOllama: {},
}

// setupMetrics creates the meter provider, the /metrics handler and all instruments.
func setupMetrics() (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	mp, handler, err := observability.NewMeterProvider(serviceName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.MeterName))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, handler, metrics, nil
}

// newEmbeddingClient builds the provider selected by EMBEDDING_PROVIDER and, for remote providers,
// layers the rate limiter on top. Every call reaches the provider: nothing is cached and failed calls
// are not retried. The sentence-transformers pool blocks until every worker has loaded the model;
// ctx cancels that wait.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (service.EmbeddingClient, error) {
	var client service.EmbeddingClient

	switch cfg.EmbeddingProvider {
	case config.ProviderSentenceTransformers:
		pool, err := sentencetransformers.New(ctx, sentencetransformers.Config{
			Model:     cfg.EmbeddingModel,
			CacheDir:  cfg.EmbeddingCacheDir,
			Python:    cfg.EmbeddingPython,
			Workers:   cfg.EmbeddingWorkers,
			Device:    cfg.EmbeddingDevice,
			SkipSetup: cfg.EmbeddingSkipSetup,
			Logger:    slog.Default(),
		})
		if err != nil {
			return nil, fmt.Errorf("start sentence-transformers workers: %w", err)
		}

		slog.Info("sentence-transformers ready",
			"model", pool.Model(), "workers", cfg.EmbeddingWorkers, "dimensions", pool.Dimensions())

		client = pool
	case config.ProviderOpenAI:
		opts := []openai.ClientOption{
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithMaxRetries(0),
		}
		if cfg.EmbeddingBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.EmbeddingBaseURL))
		}

		c := openai.NewClient(cfg.EmbeddingProviderAPIKey, opts...)
		slog.Info("embedding provider configured", "provider", cfg.EmbeddingProvider, "model", c.Model())

		client = c
	case config.ProviderGoogle:
		opts := []googleai.ClientOption{
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		}
		if cfg.EmbeddingBaseURL != "" {
			opts = append(opts, googleai.WithBaseURL(cfg.EmbeddingBaseURL))
		}

		c, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		slog.Info("embedding provider configured", "provider", cfg.EmbeddingProvider, "model", c.Model())

		client = c
	case config.ProviderOllama:
		c := ollama.NewClient(ollama.ClientOptions{
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
		})
		slog.Info("embedding provider configured", "provider", cfg.EmbeddingProvider, "model", c.Model())

		client = c
	case config.ProviderMock:
		dims := embeddings.DefaultMockDimensions
		if cfg.EmbeddingDimensions > 0 {
			dims = cfg.EmbeddingDimensions
		}

		slog.Warn("using mock embedding provider; scores reflect word overlap only", "dimensions", dims)

		client = embeddings.NewMockClientWithDimensions(dims)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEmbeddingProvider, cfg.EmbeddingProvider)
	}

	if _, remote := remoteProviders[cfg.EmbeddingProvider]; remote && cfg.EmbeddingRateLimit > 0 {
		burst := max(1, int(cfg.EmbeddingRateLimit))
		slog.Info("embedding rate limit enabled", "per_second", cfg.EmbeddingRateLimit, "burst", burst)

		client = service.NewRateLimitedClient(client, cfg.EmbeddingRateLimit, burst)
	}

	return client, nil
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	var (
		err            error
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        *observability.Metrics
	)

	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = setupMetrics()
		if err != nil {
			return nil, err
		}
	} else {
		slog.Info("metrics not enabled (METRICS_ENABLED unset)")
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" || cfg.OtelTracesExporter == "none" {
		slog.Info("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(ctx, cfg.OtelTracesExporter, serviceName)
		if err != nil {
			if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
				slog.Error("shutdown meter provider after tracer provider error", "error", err2)
			}

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	embedder, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after embedding provider error", "error", err2)
		}

		return nil, err
	}

	var (
		embeddingMetrics observability.EmbeddingMetrics
		httpMetrics      observability.HTTPMetrics
	)
	if metrics != nil {
		embeddingMetrics = metrics.Embeddings
		httpMetrics = metrics.HTTP
	}

	similarityService := service.NewSimilarityService(service.SimilarityServiceParams{
		EmbeddingClient: embedder,
		Provider:        cfg.EmbeddingProvider,
		Metrics:         embeddingMetrics,
		Logger:          slog.Default(),
	})

	router := newRouter(routerParams{
		MaxBodyBytes:   cfg.MaxRequestBodyBytes,
		Health:         handlers.NewHealthHandler(),
		Similarity:     handlers.NewSimilarityHandler(similarityService),
		MetricsHandler: metricsHandler,
		HTTPMetrics:    httpMetrics,
	})

	return &App{
		cfg:            cfg,
		server:         newHTTPServer(cfg, router, meterProvider, tracerProvider),
		embedder:       embedder,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// routerParams carries the handlers mounted by newRouter. MetricsHandler and HTTPMetrics are nil
// when metrics are disabled.
type routerParams struct {
	MaxBodyBytes   int64
	Health         *handlers.HealthHandler
	Similarity     *handlers.SimilarityHandler
	MetricsHandler http.Handler
	HTTPMetrics    observability.HTTPMetrics
}

// newRouter mounts the API routes. Metrics runs inside the router so it sees the matched pattern.
func newRouter(p routerParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics(p.HTTPMetrics))

	var bodyRecorder middleware.RequestBodyTooLargeRecorder
	if p.HTTPMetrics != nil {
		bodyRecorder = p.HTTPMetrics
	}

	r.Use(middleware.MaxBody(p.MaxBodyBytes, bodyRecorder))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.RespondError(w, http.StatusNotFound, response.MessageNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.RespondError(w, http.StatusMethodNotAllowed, response.MessageMethodNotAllowed)
	})

	r.Get("/health", p.Health.Check)
	r.Post("/semantic-similarity", p.Similarity.Compare)

	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	// Recover and CORS wrap the router so preflights and panics never depend on routing.
	return middleware.Recover(middleware.CORS(r))
}

// newHTTPServer builds the HTTP server.
// Handler chain: RequestID -> otelhttp(Logging(router)) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	router http.Handler,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	inner := middleware.Logging(router)
	handler := otelhttp.NewHandler(inner, "similarity-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	return &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: readTimeout,
		// Remote providers and first-call model loading can be slow; allow a full retry cycle.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal) or the server fails.
// Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port, "provider", a.cfg.EmbeddingProvider)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// closeEmbedder releases provider resources (worker processes) when the provider holds any.
func closeEmbedder(embedder service.EmbeddingClient) error {
	closer, ok := embedder.(io.Closer)
	if !ok {
		return nil
	}

	if err := closer.Close(); err != nil {
		return fmt.Errorf("close embedding provider: %w", err)
	}

	return nil
}

// Shutdown stops the server, then the embedding provider. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when the server and provider stop cleanly.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if closeErr := closeEmbedder(a.embedder); closeErr != nil {
			slog.Error("close embedding provider during server shutdown", "error", closeErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	return closeEmbedder(a.embedder)
}

// Command api serves the WebPulse dashboard API. Each submitted URL is
// fanned out to the analysis sources and the assembled report is kept in
// the caller's session history.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/webpulse/webpulse/internal/cache"
	"github.com/webpulse/webpulse/internal/config"
	"github.com/webpulse/webpulse/internal/dashboard"
	"github.com/webpulse/webpulse/internal/handler"
	"github.com/webpulse/webpulse/internal/history"
	"github.com/webpulse/webpulse/internal/metrics"
	"github.com/webpulse/webpulse/internal/middleware"
	"github.com/webpulse/webpulse/internal/server"
	"github.com/webpulse/webpulse/internal/service"
	"github.com/webpulse/webpulse/internal/source"
	"github.com/webpulse/webpulse/internal/telemetry"
)

const serviceName = "webpulse-api"

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

// backends is what the API keeps state in: Redis when configured,
// process memory otherwise.
type backends struct {
	store   history.Store
	limiter middleware.Limiter
	redis   *cache.Cache
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, history and rate limits are per process")
		return &backends{store: history.NewMemoryStore(cfg.HistoryTTL), limiter: cache.NewLocalLimiter()}, nil
	}

	rdb, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %s", telemetry.RedactURL(cfg.RedisURL), telemetry.SanitizeError(err, cfg.RedisURL))
	}
	logger.Info("redis connected", "url", telemetry.RedactURL(cfg.RedisURL))
	return &backends{store: cache.NewHistoryStore(rdb, cfg.HistoryTTL), limiter: rdb, redis: rdb}, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  serviceName,
		Version:      version,
		Environment:  cfg.AppEnv,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SentryDSN:    cfg.SentryDSN,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return errors.Join(err, shutdownTelemetry(context.Background()))
	}

	recorder := metrics.NewPrometheus(serviceName)
	sources := source.NewClient(cfg.SourcesBaseURL,
		source.WithMaxRetries(cfg.SourceMaxRetries),
		source.WithRecorder(recorder),
		source.WithLogger(logger),
	)
	controller := dashboard.NewController(
		service.NewAggregator(sources, cfg.SourceTimeout, recorder, logger),
		be.store, recorder, logger,
	)

	var redisCheck handler.HealthChecker
	if be.redis != nil {
		redisCheck = be.redis
	}

	r := newRouter(cfg, logger, routes{
		root:    handler.New(version),
		health:  handler.NewHealthHandler(redisCheck, sources),
		reports: handler.NewReportHandler(controller, logger),
		metrics: recorder,
		limiter: be.limiter,
	})

	srv := server.New(otelhttp.NewHandler(r, serviceName), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("telemetry", shutdownTelemetry)
	if be.redis != nil {
		srv.OnShutdown("redis", func(context.Context) error { return be.redis.Close() })
	}

	logger.Info("api starting",
		"port", cfg.AppPort,
		"sources", cfg.SourcesBaseURL,
		"env", cfg.AppEnv,
		"version", version,
	)
	return srv.Run(ctx)
}

type routes struct {
	root    *handler.Handler
	health  *handler.HealthHandler
	reports *handler.ReportHandler
	metrics *metrics.PrometheusRecorder
	limiter middleware.Limiter
}

func newRouter(cfg *config.Config, logger *slog.Logger, rt routes) chi.Router {
	limits := middleware.RateLimitConfig{
		Logger:               logger,
		Limiter:              rt.limiter,
		Metrics:              rt.metrics,
		Enabled:              cfg.RateLimitEnabled,
		IPRPS:                cfg.RateLimitRPS,
		IPBurst:              cfg.RateLimitBurst,
		SubmissionsPerMinute: cfg.SubmissionsPerMinute,
		SubmissionBurst:      cfg.SubmissionBurst,
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins()

	r := chi.NewRouter()
	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recoverer(logger, cfg.IsDevelopment()),
		middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}),
		middleware.CORS(cors),
	)
	r.NotFound(rt.root.NotFound)
	r.MethodNotAllowed(rt.root.MethodNotAllowed)

	r.Get("/", rt.root.Index)
	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Handle("/metrics", rt.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session, middleware.RateLimitIP(limits))

		r.Get("/session", rt.reports.Session)
		r.Get("/reports", rt.reports.List)
		r.Get("/reports/{id}", rt.reports.Get)
		r.With(
			middleware.MaxBodySize(cfg.MaxRequestBodySize),
			middleware.RateLimitSession(limits),
		).Post("/reports", rt.reports.Submit)
	})

	return r
}

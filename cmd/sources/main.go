// Package main is the entrypoint for the WebPulse analysis sources server,
// which serves /analyze, /lighthouse and /analyze-meta-tags.
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

	"github.com/webpulse/webpulse/internal/config"
	"github.com/webpulse/webpulse/internal/middleware"
	"github.com/webpulse/webpulse/internal/server"
	"github.com/webpulse/webpulse/internal/sources"
	"github.com/webpulse/webpulse/internal/telemetry"
)

const serviceName = "webpulse-sources"

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSources()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sources stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.SourcesConfig, logger *slog.Logger) error {
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

	llm := sources.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		RPM:     cfg.LLMRPM,
		Burst:   cfg.LLMBurst,
	}
	var gen sources.Generator
	if cfg.LLMAPIKey != "" {
		if gen, err = sources.NewOpenAIGenerator(ctx, llm); err != nil {
			return errors.Join(fmt.Errorf("chat model: %w", err), shutdownTelemetry(context.Background()))
		}
		logger.Info("llm insights enabled", "model", cfg.LLMModel)
	} else {
		logger.Warn("LLM_API_KEY not set, insights use templates")
	}

	pagespeed := sources.NewPageSpeed(sources.PageSpeedConfig{
		APIURL:   cfg.PageSpeedAPIURL,
		APIKey:   cfg.PageSpeedAPIKey,
		Strategy: cfg.PageSpeedStrategy,
		RPS:      cfg.PageSpeedRPS,
	}, sources.NewFetchClient(cfg.WriteTimeout))
	pages := sources.NewPageFetcher(sources.NewFetchClient(cfg.FetchTimeout))
	h := sources.NewHandler(pagespeed, pages, sources.NewInsighter(gen, llm, logger), logger)

	r := chi.NewRouter()
	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recoverer(logger, cfg.IsDevelopment()),
	)
	h.Routes(r)

	srv := server.New(otelhttp.NewHandler(r, serviceName), server.Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("telemetry", shutdownTelemetry)

	logger.Info("sources starting",
		"port", cfg.Port,
		"strategy", cfg.PageSpeedStrategy,
		"env", cfg.AppEnv,
		"version", version,
	)
	return srv.Run(ctx)
}

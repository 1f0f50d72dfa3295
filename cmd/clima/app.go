package main

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/clima-ingest-service/internal/adapter/openweather"
	"github.com/couchcryptid/clima-ingest-service/internal/config"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
	"github.com/couchcryptid/clima-ingest-service/internal/pipeline"
	"github.com/couchcryptid/clima-ingest-service/internal/store"
	"github.com/jonboulle/clockwork"
)

// app holds the components shared by every command that touches the pipeline.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   store.Store
	handler *pipeline.Handler
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context) (*config.Config, *slog.Logger, store.Store, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := store.Open(ctx, cfg, clockwork.NewRealClock())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, s, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics()

	var opts []openweather.Option
	if cfg.BreakerEnabled {
		opts = append(opts, openweather.WithBreaker(cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout))
	}
	client := openweather.NewClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger, opts...)

	processor := pipeline.NewProcessor(client, s, logger, metrics)
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   s,
		handler: pipeline.NewHandler(processor, logger, metrics),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", "error", err)
	}
}

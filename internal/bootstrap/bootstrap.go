// Package bootstrap builds the provider stack and model store shared by the
// API server and the trainer.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/airquality/waqi"
	"github.com/ecoroute/ecoroute/internal/config"
	"github.com/ecoroute/ecoroute/internal/database"
	"github.com/ecoroute/ecoroute/internal/environment"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/routing/osrm"
	"github.com/ecoroute/ecoroute/internal/telemetry"
	"github.com/ecoroute/ecoroute/internal/traffic"
	"github.com/ecoroute/ecoroute/internal/traffic/tomtom"
	"github.com/ecoroute/ecoroute/internal/worker"
)

// NewLogger returns the process logger. Development runs get a console writer.
func NewLogger(service, version string, cfg config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Providers is the set of data providers an environment reads from.
type Providers struct {
	Traffic    traffic.Provider
	Routing    routing.Provider
	AirQuality airquality.Provider
}

// ProviderOptions configures NewProviders.
type ProviderOptions struct {
	Registry *resilience.Registry
	Metrics  *telemetry.ProviderMetrics

	// Offline replaces the live APIs with fixed in-memory providers.
	Offline bool

	Logger zerolog.Logger
}

// NewProviders builds the TomTom, OSRM and WAQI clients behind their caching
// services.
func NewProviders(cfg config.Config, opts ProviderOptions) Providers {
	if opts.Offline {
		opts.Logger.Warn().Msg("using offline providers with fixed data")
		return Providers{
			Traffic:    fake.NewTraffic(25, 50, 900),
			Routing:    fake.NewRouting(12000, 1500),
			AirQuality: fake.NewAirQuality(140),
		}
	}

	if cfg.TomTomAPIKey == "" {
		opts.Logger.Warn().Msg("TOMTOM_API_KEY is not set, traffic requests will fail")
	}
	if cfg.AQICNToken == "" {
		opts.Logger.Warn().Msg("AQICN_API_KEY is not set, air quality requests will fail")
	}

	trafficClient := tomtom.NewClient(tomtom.ClientConfig{
		APIKey:   cfg.TomTomAPIKey,
		BaseURL:  cfg.TomTomBaseURL,
		Registry: opts.Registry,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger.With().Str("provider", tomtom.ProviderName).Logger(),
	})
	routingClient := osrm.NewClient(osrm.ClientConfig{
		BaseURL:  cfg.OSRMBaseURL,
		Registry: opts.Registry,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger.With().Str("provider", osrm.ProviderName).Logger(),
	})
	aqClient := waqi.NewClient(waqi.ClientConfig{
		Token:    cfg.AQICNToken,
		BaseURL:  cfg.AQICNBaseURL,
		Registry: opts.Registry,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger.With().Str("provider", waqi.ProviderName).Logger(),
	})

	return Providers{
		Traffic:    traffic.NewService(traffic.ServiceConfig{Provider: trafficClient, Logger: opts.Logger}),
		Routing:    routing.NewService(routing.ServiceConfig{Provider: routingClient, Logger: opts.Logger}),
		AirQuality: airquality.NewService(airquality.ServiceConfig{Provider: aqClient, Logger: opts.Logger}),
	}
}

// OpenStore opens the model store selected by cfg.ModelStore. The returned
// close function is never nil.
func OpenStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (modelstore.Repository, func(), error) {
	switch cfg.ModelStore {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connecting to database: %w", err)
		}
		repo := modelstore.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("ensuring model schema: %w", err)
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		return repo, pool.Close, nil

	case config.StoreSQLite:
		repo, err := modelstore.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close model store")
			}
		}, nil

	default:
		logger.Warn().Msg("using in-memory model store, trained policies are lost on exit")
		return modelstore.NewMemoryRepository(), func() {}, nil
	}
}

// EnvFactory returns a worker.EnvFactory building environments over p.
func (p Providers) EnvFactory(cfg config.Config, logger zerolog.Logger) worker.EnvFactory {
	return func(seed int64) (*environment.Env, error) {
		return environment.New(environment.Config{
			Region:           cfg.Region,
			Traffic:          p.Traffic,
			Routing:          p.Routing,
			AirQuality:       p.AirQuality,
			AirQualityRegion: cfg.AQICNRegion,
			EpisodeCache:     cfg.EpisodeCache,
			Rand:             rand.New(rand.NewSource(seed)), //nolint:gosec // simulation randomness
			Logger:           logger,
		})
	}
}

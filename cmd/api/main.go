// Package main provides the entrypoint for the EcoRoute API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoroute/ecoroute/internal/api"
	"github.com/ecoroute/ecoroute/internal/api/middleware"
	"github.com/ecoroute/ecoroute/internal/auth"
	"github.com/ecoroute/ecoroute/internal/bootstrap"
	"github.com/ecoroute/ecoroute/internal/config"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/serving"
	"github.com/ecoroute/ecoroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ecoroute-api"

	config.LoadDotEnv()
	cfg, err := config.Load()

	log := bootstrap.NewLogger(serviceName, Version, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("region", cfg.Region.Name).
		Msg("starting EcoRoute API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	registry := resilience.NewRegistry()
	providers := bootstrap.NewProviders(cfg, bootstrap.ProviderOptions{
		Registry: registry,
		Metrics:  providerMetrics,
		Offline:  cfg.OfflineProviders,
		Logger:   log,
	})

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.ModelStore).Msg("failed to open model store")
	}
	defer closeStore()

	svc := serving.NewService(serving.Config{
		Region:           cfg.Region,
		Traffic:          providers.Traffic,
		Routing:          providers.Routing,
		AirQuality:       providers.AirQuality,
		AirQualityRegion: cfg.AQICNRegion,
		EpisodeCache:     cfg.EpisodeCache,
		Store:            store,
		Logger:           log,
	})

	if info, err := svc.Reload(ctx, cfg.ModelName); err != nil {
		log.Warn().
			Err(err).
			Str("model", cfg.ModelName).
			Msg("no policy loaded, optimize requests will answer 503 until one is reloaded")
	} else {
		log.Info().
			Str("model", info.Name).
			Int("updates", info.Updates).
			Msg("policy loaded")
	}

	if cfg.JWTSigningKey == "" {
		log.Warn().Msg("JWT_SIGNING_KEY is not set, operator endpoints are disabled")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Serving:     svc,
		Store:       store,
		Registry:    registry,
		JWT:         jwtService,
		CORSOrigins: cfg.CORSAllowedOrigins,
		RequireTLS:  cfg.IsProduction(),
	})

	// Optimize runs several provider round trips, so the write timeout is
	// wider than the provider client timeout.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

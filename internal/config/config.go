// Package config loads process configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ecoroute/ecoroute/internal/database"
	"github.com/ecoroute/ecoroute/internal/geo"
)

// Model store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// ErrInvalidConfig is returned when a value cannot be parsed or is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full process configuration.
type Config struct {
	Port        string
	Environment string

	OTelEnabled  bool
	OTLPEndpoint string

	TomTomAPIKey  string
	TomTomBaseURL string

	AQICNToken   string
	AQICNBaseURL string
	AQICNRegion  string

	OSRMBaseURL string

	// OfflineProviders swaps the live APIs for fixed in-memory data.
	OfflineProviders bool

	Region       geo.Region
	EpisodeCache bool

	ModelStore string
	ModelName  string
	SQLitePath string
	Database   database.Config

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	PubSubProjectID    string
	PubSubSubscription string

	CORSAllowedOrigins []string
}

// LoadDotEnv reads the given .env files into the process environment. Missing
// files are skipped. Later files override earlier ones.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for i, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if i == 0 {
			_ = godotenv.Load(f)
		} else {
			_ = godotenv.Overload(f)
		}
	}
}

// Load builds a Config from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("APP_PORT", "8080"),
		Environment:        getEnv("APP_ENV", "development"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TomTomAPIKey:       os.Getenv("TOMTOM_API_KEY"),
		TomTomBaseURL:      getEnv("TOMTOM_BASE_URL", "https://api.tomtom.com"),
		AQICNToken:         os.Getenv("AQICN_API_KEY"),
		AQICNBaseURL:       getEnv("AQICN_BASE_URL", "https://api.waqi.info"),
		AQICNRegion:        getEnv("AQICN_REGION", geo.Mumbai.Name),
		OSRMBaseURL:        getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
		ModelStore:         strings.ToLower(getEnv("MODEL_STORE", StoreMemory)),
		ModelName:          getEnv("MODEL_NAME", "route-policy"),
		SQLitePath:         getEnv("SQLITE_PATH", "ecoroute.db"),
		Database:           database.ConfigFromEnv(),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:          getEnv("JWT_ISSUER", "ecoroute"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "ecoroute-operators"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnv("PUBSUB_SUBSCRIPTION", "training-jobs"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.OTelEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.EpisodeCache, err = getBool("EPISODE_CACHE", false); err != nil {
		return cfg, err
	}
	if cfg.OfflineProviders, err = getBool("OFFLINE_PROVIDERS", false); err != nil {
		return cfg, err
	}

	region := geo.Mumbai
	bounds := []struct {
		key string
		dst *float64
	}{
		{"REGION_LAT_MIN", &region.MinLat},
		{"REGION_LAT_MAX", &region.MaxLat},
		{"REGION_LON_MIN", &region.MinLon},
		{"REGION_LON_MAX", &region.MaxLon},
	}
	for _, b := range bounds {
		if *b.dst, err = getFloat(b.key, *b.dst); err != nil {
			return cfg, err
		}
	}
	region.Name = getEnv("REGION_NAME", region.Name)
	if err := region.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: region: %w", ErrInvalidConfig, err)
	}
	cfg.Region = region

	switch cfg.ModelStore {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return cfg, fmt.Errorf("%w: MODEL_STORE must be memory, postgres or sqlite, got %q", ErrInvalidConfig, cfg.ModelStore)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, raw)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

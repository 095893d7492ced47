package airquality

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/provider"
)

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache a region reading (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration
}

// Service provides region air quality readings with caching.
// It implements Provider so it can stand in for the underlying client.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*cachedReading
}

type cachedReading struct {
	reading   Reading
	expiresAt time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		cache:           make(map[string]*cachedReading),
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetReading returns the cached reading for the region if fresh, otherwise refreshes it.
func (s *Service) GetReading(ctx context.Context, region string) provider.Result[Reading] {
	s.mu.RLock()
	if cached, ok := s.cache[region]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return provider.Ok(cached.reading)
	}
	s.mu.RUnlock()

	return s.refresh(ctx, region)
}

// refresh fetches a fresh reading from the provider.
func (s *Service) refresh(ctx context.Context, region string) provider.Result[Reading] {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine might have refreshed while we waited
	if cached, ok := s.cache[region]; ok && time.Now().Before(cached.expiresAt) {
		return provider.Ok(cached.reading)
	}

	s.logger.Debug().Str("region", region).Msg("refreshing air quality reading")

	result := s.provider.GetReading(ctx, region)
	if reading, ok := result.Get(); ok {
		s.cache[region] = &cachedReading{
			reading:   reading,
			expiresAt: time.Now().Add(s.cacheTTL),
		}
		s.logger.Info().
			Str("region", region).
			Float64("aqi", reading.Index).
			Msg("air quality reading refreshed")
		return result
	}

	if result.Status() == provider.StatusTransportError {
		s.logger.Error().
			Str("region", region).
			Str("detail", result.Detail()).
			Msg("failed to fetch air quality reading")

		if cached, ok := s.cache[region]; ok && time.Now().Before(cached.reading.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.reading.FetchedAt).
				Msg("serving stale air quality data due to provider error")
			return provider.Ok(cached.reading)
		}
	}

	return result
}

// InvalidateCache clears all cached readings.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedReading)
}

// CacheStatus returns information about the cached reading for a region.
func (s *Service) CacheStatus(region string) CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.cache[region]
	if !ok {
		return CacheStatus{Region: region}
	}

	now := time.Now()
	return CacheStatus{
		Region:    region,
		HasData:   true,
		FetchedAt: cached.reading.FetchedAt,
		ExpiresAt: cached.expiresAt,
		IsExpired: now.After(cached.expiresAt),
		IsStale:   now.After(cached.reading.FetchedAt.Add(s.staleIfErrorTTL)),
		Provider:  s.provider.Name(),
	}
}

// CacheStatus represents the current state of a region cache entry.
type CacheStatus struct {
	Region    string
	HasData   bool
	FetchedAt time.Time
	ExpiresAt time.Time
	IsExpired bool
	IsStale   bool
	Provider  string
}

package traffic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/provider"
)

// ServiceConfig holds configuration for the traffic service.
type ServiceConfig struct {
	// Provider is the traffic data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache flow samples (default: 2 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.005).
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale samples on transport errors (default: 10 minutes).
	StaleIfErrorTTL time.Duration
}

// Service provides traffic flow samples with grid-keyed caching.
// It implements Provider so it can wrap a concrete client transparently.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*cachedSample
}

type cachedSample struct {
	sample    Sample
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new traffic service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.005
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 10 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cache:           make(map[string]*cachedSample),
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetFlow returns a cached sample when fresh, otherwise asks the provider.
// On a transport error a cached sample younger than the stale window is served instead.
func (s *Service) GetFlow(ctx context.Context, lat, lon float64) provider.Result[Sample] {
	key := s.cacheKey(lat, lon)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return provider.Ok(cached.sample)
	}
	s.mu.RUnlock()

	result := s.provider.GetFlow(ctx, lat, lon)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch result.Status() {
	case provider.StatusOK:
		sample, _ := result.Get()
		now := time.Now()
		s.cache[key] = &cachedSample{sample: sample, fetchedAt: now, expiresAt: now.Add(s.cacheTTL)}
	case provider.StatusTransportError:
		s.logger.Warn().
			Str("provider", s.provider.Name()).
			Str("cache_key", key).
			Str("detail", result.Detail()).
			Msg("traffic provider call failed")
		if cached, ok := s.cache[key]; ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale traffic sample due to provider error")
			return provider.Ok(cached.sample)
		}
	case provider.StatusAbsent:
		s.logger.Debug().
			Str("cache_key", key).
			Str("detail", result.Detail()).
			Msg("traffic provider returned no data")
	}

	return result
}

// InvalidateCache clears all cached samples.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedSample)
}

// CacheSize returns the number of cached samples.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// cacheKey quantises the location onto the cache grid.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.3f,%.3f", gridLat, gridLon)
}

package routing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache routing data (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.001 ~ 110m).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service provides routing data with caching. It implements Provider.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	mu          sync.RWMutex
	cache       map[string]*cachedRoute
	lastCleanup time.Time
}

type cachedRoute struct {
	route     Route
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.001
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedRoute),
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetRoute returns the route between two points.
// Uses cached data if available and not expired.
func (s *Service) GetRoute(ctx context.Context, start, end geo.Location) provider.Result[Route] {
	if err := start.Validate(); err != nil {
		return provider.TransportError[Route](fmt.Errorf("start: %w", err))
	}
	if err := end.Validate(); err != nil {
		return provider.TransportError[Route](fmt.Errorf("end: %w", err))
	}

	cacheKey := s.cacheKey(start, end)

	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("cache hit for route")
		return provider.Ok(cached.route)
	}
	s.mu.RUnlock()

	return s.fetchRoute(ctx, start, end, cacheKey)
}

// fetchRoute fetches the route from the provider and updates the cache.
func (s *Service) fetchRoute(ctx context.Context, start, end geo.Location, cacheKey string) provider.Result[Route] {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check cache (prevents thundering herd)
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		return provider.Ok(cached.route)
	}

	s.logger.Debug().
		Float64("origin_lat", start.Lat).
		Float64("origin_lon", start.Lon).
		Float64("dest_lat", end.Lat).
		Float64("dest_lon", end.Lon).
		Str("provider", s.provider.Name()).
		Msg("fetching route from provider")

	result := s.provider.GetRoute(ctx, start, end)

	switch result.Status() {
	case provider.StatusOK:
		route, _ := result.Get()
		now := time.Now()
		s.cache[cacheKey] = &cachedRoute{
			route:     route,
			fetchedAt: now,
			expiresAt: now.Add(s.cacheTTL),
		}
		s.cleanupIfNeeded()

	case provider.StatusTransportError:
		s.logger.Error().
			Str("detail", result.Detail()).
			Float64("origin_lat", start.Lat).
			Float64("origin_lon", start.Lon).
			Float64("dest_lat", end.Lat).
			Float64("dest_lon", end.Lon).
			Msg("failed to fetch route")

		// stale-if-error
		if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", cacheKey).
				Msg("serving stale route data due to provider error")
			return provider.Ok(cached.route)
		}

	case provider.StatusAbsent:
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Str("detail", result.Detail()).
			Msg("routing provider returned no route")
	}

	return result
}

// cacheKey quantises origin and destination onto the cache grid.
// Format: {gridOriginLat},{gridOriginLon}:{gridDestLat},{gridDestLon}.
func (s *Service) cacheKey(start, end geo.Location) string {
	q := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}
	return fmt.Sprintf("%.4f,%.4f:%.4f,%.4f", q(start.Lat), q(start.Lon), q(end.Lat), q(end.Lon))
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
// Caller must hold the write lock.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired routing cache entries")
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedRoute)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

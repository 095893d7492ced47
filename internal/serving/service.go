// Package serving answers single route recommendations with a loaded policy.
package serving

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/encoder"
	"github.com/ecoroute/ecoroute/internal/environment"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// Sentinel errors returned by Service.
var (
	// ErrNoPolicy is returned when no policy has been loaded yet.
	ErrNoPolicy = errors.New("no policy loaded")
	// ErrRouteUnavailable is returned when the chosen candidate has no route data.
	ErrRouteUnavailable = errors.New("failed to fetch route data")
)

// Config holds the collaborators of a Service.
type Config struct {
	Region           geo.Region
	Traffic          traffic.Provider
	Routing          routing.Provider
	AirQuality       airquality.Provider
	AirQualityRegion string
	EpisodeCache     bool

	// Store holds trained policies (required for Reload).
	Store modelstore.Repository

	Logger zerolog.Logger
}

// Recommendation is the outcome of one policy query.
type Recommendation struct {
	RouteID     int
	Vehicle     vehicle.Type
	Route       routing.Route
	Breakdown   cost.Breakdown
	Observation encoder.Observation
	EpisodeID   uuid.UUID
}

// ModelInfo describes the loaded policy.
type ModelInfo struct {
	Name     string
	Updates  int
	LoadedAt time.Time
}

// Service builds one environment per request and queries the current policy
// once. It is safe for concurrent use.
type Service struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.RWMutex
	policy agent.Policy
	info   ModelInfo
}

// NewService creates a service with no policy loaded.
func NewService(cfg Config) *Service {
	if cfg.Region == (geo.Region{}) {
		cfg.Region = geo.Mumbai
	}
	return &Service{cfg: cfg, logger: cfg.Logger}
}

// Region returns the region requests must fall within.
func (s *Service) Region() geo.Region {
	return s.cfg.Region
}

// SetPolicy installs policy directly, bypassing the store.
func (s *Service) SetPolicy(policy agent.Policy, info ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
	s.info = info
}

// Reload loads the named policy from the store and swaps it in.
func (s *Service) Reload(ctx context.Context, name string) (ModelInfo, error) {
	if s.cfg.Store == nil {
		return ModelInfo{}, errors.New("serving: no model store configured")
	}

	blob, err := s.cfg.Store.Load(ctx, name)
	if err != nil {
		return ModelInfo{}, err
	}

	q, err := agent.LoadLinearQ(blob, environment.DefaultObservationSpec(), environment.DefaultActionSpec(), nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("loading policy %q: %w", name, err)
	}

	info := ModelInfo{Name: name, Updates: q.Updates(), LoadedAt: time.Now().UTC()}
	s.SetPolicy(q, info)

	s.logger.Info().
		Str("model", name).
		Int("updates", info.Updates).
		Msg("policy loaded")

	return info, nil
}

// Model returns the loaded policy's description and whether one is loaded.
func (s *Service) Model() (ModelInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.policy != nil
}

// Ready reports whether a policy is loaded.
func (s *Service) Ready() bool {
	_, ok := s.Model()
	return ok
}

// Optimize resets a fresh environment at scenario and returns the candidate
// the policy picks. Scenarios outside the region are rejected with
// geo.ErrOutOfBounds before any provider call.
func (s *Service) Optimize(ctx context.Context, scenario geo.Scenario) (Recommendation, error) {
	s.mu.RLock()
	policy := s.policy
	s.mu.RUnlock()
	if policy == nil {
		return Recommendation{}, ErrNoPolicy
	}

	if err := scenario.Check(s.cfg.Region); err != nil {
		return Recommendation{}, err
	}

	env, err := environment.New(environment.Config{
		Region:           s.cfg.Region,
		Traffic:          s.cfg.Traffic,
		Routing:          s.cfg.Routing,
		AirQuality:       s.cfg.AirQuality,
		AirQualityRegion: s.cfg.AirQualityRegion,
		EpisodeCache:     s.cfg.EpisodeCache,
		Rand:             rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not security sensitive
		Logger:           s.logger,
	})
	if err != nil {
		return Recommendation{}, err
	}

	obs, err := env.ResetWith(ctx, scenario)
	if err != nil {
		return Recommendation{}, err
	}

	action := policy.Predict(obs)
	routes := env.Routes()
	if !env.ActionSpec().Contains(action) {
		return Recommendation{}, fmt.Errorf("%w: policy returned %d", environment.ErrInvalidAction, action)
	}

	chosen := routes[action]
	if !chosen.Present() {
		s.logger.Warn().
			Str("episode_id", env.EpisodeID().String()).
			Int("route_id", chosen.ID).
			Str("vehicle", chosen.Vehicle.String()).
			Msg("recommended route has no data")
		return Recommendation{}, ErrRouteUnavailable
	}

	return Recommendation{
		RouteID:     chosen.ID,
		Vehicle:     chosen.Vehicle,
		Route:       chosen.Route.Route,
		Breakdown:   chosen.Route.Breakdown,
		Observation: obs,
		EpisodeID:   env.EpisodeID(),
	}, nil
}

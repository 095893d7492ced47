package environment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/catalog"
	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/encoder"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
)

const instrumentationName = "github.com/ecoroute/ecoroute/internal/environment"

// Config holds the collaborators and settings of an Env.
type Config struct {
	// Region bounds sampled scenarios (default: geo.Mumbai).
	Region geo.Region

	// Traffic, Routing and AirQuality are the data providers (required).
	Traffic    traffic.Provider
	Routing    routing.Provider
	AirQuality airquality.Provider

	// AirQualityRegion is the air quality feed to query (default: Region.Name).
	AirQualityRegion string

	// Rand drives scenario sampling and vehicle draws (default: time seeded).
	Rand *rand.Rand

	// EpisodeCache memoises provider data within an episode. Off by default,
	// in which case every step re-queries the providers.
	EpisodeCache bool

	// Logger for environment operations.
	Logger zerolog.Logger
}

// Env is a single route selection environment. It is not safe for concurrent use.
type Env struct {
	region  geo.Region
	rng     *rand.Rand
	cache   *episodeCache
	catalog *catalog.Builder
	encoder *encoder.Encoder
	logger  zerolog.Logger

	tracer      trace.Tracer
	rewardHist  metric.Float64Histogram
	episodesCtr metric.Int64Counter

	state       State
	episodeID   uuid.UUID
	scenario    geo.Scenario
	routes      []catalog.CandidateRoute
	observation encoder.Observation
	steps       int
}

var _ Environment = (*Env)(nil)

// New creates an environment. It must be Reset before Step.
func New(cfg Config) (*Env, error) {
	if cfg.Traffic == nil || cfg.Routing == nil || cfg.AirQuality == nil {
		return nil, errors.New("environment: traffic, routing and air quality providers are required")
	}

	region := cfg.Region
	if region == (geo.Region{}) {
		region = geo.Mumbai
	}
	if err := region.Validate(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	aqRegion := cfg.AirQualityRegion
	if aqRegion == "" {
		aqRegion = region.Name
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not security sensitive
	}

	model := cost.NewModel(cost.ModelConfig{
		Traffic: cfg.Traffic,
		Routing: cfg.Routing,
		Logger:  cfg.Logger,
	})
	cache := newEpisodeCache(cfg.EpisodeCache, model, cfg.AirQuality)

	meter := otel.Meter(instrumentationName)
	rewardHist, err := meter.Float64Histogram(
		"env.step.reward",
		metric.WithDescription("Reward returned by environment steps"),
	)
	if err != nil {
		return nil, err
	}
	episodesCtr, err := meter.Int64Counter(
		"env.episodes",
		metric.WithDescription("Number of episodes started"),
		metric.WithUnit("{episode}"),
	)
	if err != nil {
		return nil, err
	}

	return &Env{
		region:  region,
		rng:     rng,
		cache:   cache,
		catalog: catalog.NewBuilder(cache, cfg.Logger),
		encoder: encoder.New(encoder.Config{
			Cost:       cache,
			AirQuality: cache,
			Region:     aqRegion,
			Logger:     cfg.Logger,
		}),
		logger:      cfg.Logger,
		tracer:      otel.Tracer(instrumentationName),
		rewardHist:  rewardHist,
		episodesCtr: episodesCtr,
		state:       StateUninitialized,
	}, nil
}

// ActionSpec implements Environment.
func (e *Env) ActionSpec() ActionSpec {
	return DefaultActionSpec()
}

// ObservationSpec implements Environment.
func (e *Env) ObservationSpec() ObservationSpec {
	return DefaultObservationSpec()
}

// Reset samples a new scenario uniformly within the region and starts an episode.
func (e *Env) Reset(ctx context.Context) (encoder.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.reset(ctx, e.region.SampleScenario(e.rng))
}

// ResetWith starts an episode for an explicit scenario. Both endpoints must
// lie within the region.
func (e *Env) ResetWith(ctx context.Context, scenario geo.Scenario) (encoder.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := scenario.Check(e.region); err != nil {
		return nil, err
	}
	return e.reset(ctx, scenario)
}

func (e *Env) reset(ctx context.Context, scenario geo.Scenario) (encoder.Observation, error) {
	episodeID := uuid.New()

	ctx, span := e.tracer.Start(ctx, "env.reset", trace.WithAttributes(
		attribute.String("episode.id", episodeID.String()),
	))
	defer span.End()

	e.cache.clear()
	routes := e.catalog.Build(ctx, scenario, e.rng)
	observation := e.encoder.Encode(ctx, scenario, routes[0].Vehicle)

	// A reset cut short leaves the previous episode in place. Records fetched
	// under the cancelled context may be absent, so none of them are kept.
	if err := ctx.Err(); err != nil {
		e.cache.clear()
		return nil, err
	}

	e.episodeID = episodeID
	e.scenario = scenario
	e.steps = 0
	e.routes = routes
	e.observation = observation
	e.state = StateReady

	present := 0
	for _, r := range e.routes {
		if r.Present() {
			present++
		}
	}
	span.SetAttributes(attribute.Int("routes.present", present))
	e.episodesCtr.Add(ctx, 1)

	e.logger.Info().
		Str("episode_id", episodeID.String()).
		Str("start", scenario.Start.String()).
		Str("end", scenario.End.String()).
		Int("routes_present", present).
		Msg("episode reset")

	return e.observation.Clone(), nil
}

// Step scores the candidate at index action. An action outside [0, N) returns
// ErrInvalidAction and leaves the environment unchanged.
func (e *Env) Step(ctx context.Context, action int) (StepResult, error) {
	if e.state == StateUninitialized {
		return StepResult{}, ErrNotReady
	}
	if !e.ActionSpec().Contains(action) {
		return StepResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, action, e.ActionSpec().N)
	}
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	ctx, span := e.tracer.Start(ctx, "env.step", trace.WithAttributes(
		attribute.String("episode.id", e.episodeID.String()),
		attribute.Int("action", action),
	))
	defer span.End()

	e.steps++
	chosen := e.routes[action]
	result := StepResult{Info: map[string]any{}}

	breakdown, ok := e.cache.Evaluate(ctx, e.scenario, chosen.Vehicle)
	if !ok {
		result.Observation = e.observation.Clone()
		result.Reward = 0
		result.Terminal = true
		result.Info[AbsentKey] = true
	} else {
		result.Reward = -breakdown.Total()
		e.observation = e.encoder.Encode(ctx, e.scenario, chosen.Vehicle)
		result.Observation = e.observation.Clone()
		result.Terminal = e.scenario.AtDestination(geo.DestinationTolerance)
	}

	if result.Terminal {
		e.state = StateTerminal
	} else {
		e.state = StateReady
	}

	span.SetAttributes(
		attribute.Float64("reward", result.Reward),
		attribute.Bool("terminal", result.Terminal),
		attribute.Bool("data_present", ok),
	)
	e.rewardHist.Record(ctx, result.Reward, metric.WithAttributes(
		attribute.String("vehicle", chosen.Vehicle.String()),
	))

	e.logger.Debug().
		Str("episode_id", e.episodeID.String()).
		Int("step", e.steps).
		Int("action", action).
		Str("vehicle", chosen.Vehicle.String()).
		Bool("data_present", ok).
		Float64("reward", result.Reward).
		Bool("terminal", result.Terminal).
		Msg("environment step")

	return result, nil
}

// Scenario returns the current episode's scenario.
func (e *Env) Scenario() geo.Scenario {
	return e.scenario
}

// Routes returns a copy of the current candidate set.
func (e *Env) Routes() []catalog.CandidateRoute {
	return append([]catalog.CandidateRoute(nil), e.routes...)
}

// Observation returns a copy of the current observation.
func (e *Env) Observation() encoder.Observation {
	return e.observation.Clone()
}

// State returns the lifecycle state.
func (e *Env) State() State {
	return e.state
}

// EpisodeID identifies the current episode. It is uuid.Nil before the first reset.
func (e *Env) EpisodeID() uuid.UUID {
	return e.episodeID
}

// Region returns the scenario region.
func (e *Env) Region() geo.Region {
	return e.region
}

// Package encoder builds the fixed-length observation vector for a scenario
// and vehicle.
package encoder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// Positions of the scalar features in an observation. The vehicle one-hot
// follows at OneHotOffset.
const (
	TravelTime = iota
	Emissions
	TrafficPenalty
	AirQuality
	OneHotOffset
)

// Length is the number of features in an observation.
var Length = OneHotOffset + vehicle.Count

// Observation is the encoded state presented to a policy.
type Observation []float64

// Zero returns the all-zero observation used when data is absent.
func Zero() Observation {
	return make(Observation, Length)
}

// Vehicle returns the vehicle whose one-hot bit is set, if any.
func (o Observation) Vehicle() (vehicle.Type, bool) {
	if len(o) != Length {
		return "", false
	}
	for i, t := range vehicle.All() {
		if o[OneHotOffset+i] == 1 {
			return t, true
		}
	}
	return "", false
}

// Clone returns a copy of the observation.
func (o Observation) Clone() Observation {
	return append(Observation(nil), o...)
}

// Evaluator computes a cost breakdown for a scenario and vehicle.
type Evaluator interface {
	Evaluate(ctx context.Context, scenario geo.Scenario, v vehicle.Type) (cost.Breakdown, bool)
}

// Config holds the collaborators of the encoder.
type Config struct {
	// Cost evaluates the scalar cost features.
	Cost Evaluator

	// AirQuality provides the region reading.
	AirQuality airquality.Provider

	// Region is the air quality feed to query (default: geo.Mumbai.Name).
	Region string

	// Logger for encoder operations.
	Logger zerolog.Logger
}

// Encoder builds observations. It holds no per-episode state.
type Encoder struct {
	cost       Evaluator
	airQuality airquality.Provider
	region     string
	logger     zerolog.Logger
}

// New creates an encoder.
func New(cfg Config) *Encoder {
	region := cfg.Region
	if region == "" {
		region = geo.Mumbai.Name
	}
	return &Encoder{
		cost:       cfg.Cost,
		airQuality: cfg.AirQuality,
		region:     region,
		logger:     cfg.Logger,
	}
}

// Region returns the air quality feed the encoder queries.
func (e *Encoder) Region() string {
	return e.region
}

// Encode returns [travel_time, emissions, traffic_penalty, aqi] ++ one_hot(v).
// When the cost breakdown is invalid it returns Zero() without querying air
// quality. An absent air quality reading leaves that feature at zero.
func (e *Encoder) Encode(ctx context.Context, scenario geo.Scenario, v vehicle.Type) Observation {
	breakdown, ok := e.cost.Evaluate(ctx, scenario, v)
	if !ok {
		e.logger.Debug().Str("vehicle", v.String()).Msg("cost data absent, emitting zero observation")
		return Zero()
	}

	obs := make(Observation, Length)
	obs[TravelTime] = nonNegative(breakdown.TravelTime)
	obs[Emissions] = nonNegative(breakdown.Emissions)
	obs[TrafficPenalty] = nonNegative(breakdown.TrafficPenalty)

	aq := e.airQuality.GetReading(ctx, e.region)
	if reading, ok := aq.Get(); ok {
		obs[AirQuality] = nonNegative(reading.Index)
	} else {
		e.logger.Debug().
			Str("region", e.region).
			Str("status", aq.Status().String()).
			Str("detail", aq.Detail()).
			Msg("air quality absent, feature left at zero")
	}

	copy(obs[OneHotOffset:], vehicle.OneHot(v))
	return obs
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

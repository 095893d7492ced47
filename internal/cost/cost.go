// Package cost turns live traffic and route geometry into the per-route cost
// components used for reward and observation.
package cost

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/emissions"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// Breakdown holds the three cost components of a route.
type Breakdown struct {
	TravelTime     float64 // seconds, current travel time of the start segment
	Emissions      float64 // kg CO2e
	TrafficPenalty float64 // current speed of the start segment, km/h
}

// Total returns the sum of the components. Reward is its negation.
func (b Breakdown) Total() float64 {
	return b.TravelTime + b.Emissions + b.TrafficPenalty
}

// Record is the full data behind a breakdown: what the catalog stores per
// candidate and what the serving layer reports as route details.
type Record struct {
	Breakdown Breakdown
	Vehicle   vehicle.Type
	Traffic   traffic.Sample
	Route     routing.Route
}

// Cost computes the breakdown for a vehicle from a traffic sample and a route.
// The result is invalid when the sample is incomplete, the route is absent, or
// its distance or duration is not positive. Negative provider
// values are clamped to zero so every component, and the total, is >= 0.
func Cost(v vehicle.Type, sample traffic.Sample, route *routing.Route) (Breakdown, bool) {
	if !sample.Complete() || !usable(route) {
		return Breakdown{}, false
	}
	return Breakdown{
		TravelTime:     nonNegative(*sample.CurrentTravelTime),
		Emissions:      nonNegative(emissions.Estimate(route.DistanceMeters, v)),
		TrafficPenalty: nonNegative(*sample.CurrentSpeed),
	}, true
}

func usable(route *routing.Route) bool {
	return route != nil && route.DistanceMeters > 0 && route.DurationSeconds > 0
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// ModelConfig holds the collaborators of the cost model.
type ModelConfig struct {
	Traffic traffic.Provider
	Routing routing.Provider
	Logger  zerolog.Logger
}

// Model fetches provider data for a scenario and evaluates its cost.
type Model struct {
	traffic traffic.Provider
	routing routing.Provider
	logger  zerolog.Logger
}

// NewModel creates a cost model.
func NewModel(cfg ModelConfig) *Model {
	return &Model{
		traffic: cfg.Traffic,
		routing: cfg.Routing,
		logger:  cfg.Logger,
	}
}

// Record fetches the traffic sample at the scenario start and the route from
// start to end, and returns the combined record. It returns nil when either
// provider has no usable data. The routing provider is not called when the
// traffic sample is already unusable.
func (m *Model) Record(ctx context.Context, scenario geo.Scenario, v vehicle.Type) *Record {
	flow := m.traffic.GetFlow(ctx, scenario.Start.Lat, scenario.Start.Lon)
	sample, ok := flow.Get()
	if !ok {
		m.logger.Debug().
			Str("provider", m.traffic.Name()).
			Str("status", flow.Status().String()).
			Str("detail", flow.Detail()).
			Msg("no traffic data for scenario")
		return nil
	}
	if !sample.Complete() {
		m.logger.Debug().Msg("traffic sample missing essential fields")
		return nil
	}

	routeResult := m.routing.GetRoute(ctx, scenario.Start, scenario.End)
	route, ok := routeResult.Get()
	if !ok {
		m.logger.Debug().
			Str("provider", m.routing.Name()).
			Str("status", routeResult.Status().String()).
			Str("detail", routeResult.Detail()).
			Msg("no route data for scenario")
		return nil
	}

	breakdown, ok := Cost(v, sample, &route)
	if !ok {
		return nil
	}

	return &Record{
		Breakdown: breakdown,
		Vehicle:   v,
		Traffic:   sample,
		Route:     route,
	}
}

// Evaluate returns the cost breakdown for the scenario and vehicle, and
// whether it is valid.
func (m *Model) Evaluate(ctx context.Context, scenario geo.Scenario, v vehicle.Type) (Breakdown, bool) {
	rec := m.Record(ctx, scenario, v)
	if rec == nil {
		return Breakdown{}, false
	}
	return rec.Breakdown, true
}

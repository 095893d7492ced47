// Package catalog builds the fixed-size candidate route set for an episode.
package catalog

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// Size is the number of candidate routes per episode.
const Size = 3

// CandidateRoute is one selectable option in an episode.
type CandidateRoute struct {
	ID      int
	Vehicle vehicle.Type
	// Route is nil when the providers had no usable data for this slot.
	Route *cost.Record
}

// Present reports whether route data was available for the slot.
func (c CandidateRoute) Present() bool {
	return c.Route != nil
}

// RecordSource fetches the cost record for a scenario and vehicle.
type RecordSource interface {
	Record(ctx context.Context, scenario geo.Scenario, v vehicle.Type) *cost.Record
}

// Builder assembles candidate sets.
type Builder struct {
	source RecordSource
	logger zerolog.Logger
}

// NewBuilder creates a catalog builder.
func NewBuilder(source RecordSource, logger zerolog.Logger) *Builder {
	return &Builder{source: source, logger: logger}
}

// Build returns exactly Size candidates with ids 0..Size-1. Each slot draws
// its vehicle independently from rng; repeats are allowed. A slot whose data
// fetch fails keeps its index with a nil Route.
func (b *Builder) Build(ctx context.Context, scenario geo.Scenario, rng *rand.Rand) []CandidateRoute {
	routes := make([]CandidateRoute, Size)
	for i := range routes {
		v := vehicle.Random(rng)
		rec := b.source.Record(ctx, scenario, v)
		routes[i] = CandidateRoute{ID: i, Vehicle: v, Route: rec}

		b.logger.Debug().
			Int("route_id", i).
			Str("vehicle", v.String()).
			Bool("data_present", rec != nil).
			Msg("candidate route built")
	}
	return routes
}

package environment

import (
	"context"
	"sync"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// episodeCache sits between the environment and its providers. When enabled
// it memoises cost records per (scenario, vehicle) and air quality per
// region until the next reset. When disabled every call goes to the providers.
type episodeCache struct {
	enabled bool
	model   *cost.Model
	air     airquality.Provider

	mu       sync.Mutex
	records  map[recordKey]*cost.Record
	readings map[string]provider.Result[airquality.Reading]
}

type recordKey struct {
	scenario string
	vehicle  vehicle.Type
}

func newEpisodeCache(enabled bool, model *cost.Model, air airquality.Provider) *episodeCache {
	c := &episodeCache{enabled: enabled, model: model, air: air}
	c.clear()
	return c
}

func (c *episodeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[recordKey]*cost.Record)
	c.readings = make(map[string]provider.Result[airquality.Reading])
}

// Record implements catalog.RecordSource. Absent records are memoised too.
func (c *episodeCache) Record(ctx context.Context, scenario geo.Scenario, v vehicle.Type) *cost.Record {
	if !c.enabled {
		return c.model.Record(ctx, scenario, v)
	}

	key := recordKey{scenario: scenario.Key(), vehicle: v}
	c.mu.Lock()
	if rec, ok := c.records[key]; ok {
		c.mu.Unlock()
		return rec
	}
	c.mu.Unlock()

	rec := c.model.Record(ctx, scenario, v)

	c.mu.Lock()
	c.records[key] = rec
	c.mu.Unlock()
	return rec
}

// Evaluate implements encoder.Evaluator.
func (c *episodeCache) Evaluate(ctx context.Context, scenario geo.Scenario, v vehicle.Type) (cost.Breakdown, bool) {
	rec := c.Record(ctx, scenario, v)
	if rec == nil {
		return cost.Breakdown{}, false
	}
	return rec.Breakdown, true
}

// GetReading implements airquality.Provider.
func (c *episodeCache) GetReading(ctx context.Context, region string) provider.Result[airquality.Reading] {
	if !c.enabled {
		return c.air.GetReading(ctx, region)
	}

	c.mu.Lock()
	if r, ok := c.readings[region]; ok {
		c.mu.Unlock()
		return r
	}
	c.mu.Unlock()

	r := c.air.GetReading(ctx, region)

	c.mu.Lock()
	c.readings[region] = r
	c.mu.Unlock()
	return r
}

// Name implements airquality.Provider.
func (c *episodeCache) Name() string {
	return c.air.Name()
}

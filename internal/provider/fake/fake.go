// Package fake provides in-memory traffic, routing and air quality providers
// for tests and offline runs.
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
)

// Traffic returns a fixed result for every location.
type Traffic struct {
	mu     sync.Mutex
	result provider.Result[traffic.Sample]
	Calls  atomic.Int32
}

// NewTraffic returns a provider reporting a complete sample.
func NewTraffic(currentSpeed, freeFlowSpeed, currentTravelTime float64) *Traffic {
	return &Traffic{result: provider.Ok(traffic.Sample{
		CurrentSpeed:      traffic.Float(currentSpeed),
		FreeFlowSpeed:     traffic.Float(freeFlowSpeed),
		CurrentTravelTime: traffic.Float(currentTravelTime),
	})}
}

// Set replaces the result returned by subsequent calls.
func (t *Traffic) Set(r provider.Result[traffic.Sample]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = r
}

// GetFlow implements traffic.Provider.
func (t *Traffic) GetFlow(_ context.Context, _, _ float64) provider.Result[traffic.Sample] {
	t.Calls.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Name implements traffic.Provider.
func (t *Traffic) Name() string { return "fake-traffic" }

// Routing returns a fixed result for every origin/destination pair.
type Routing struct {
	mu     sync.Mutex
	result provider.Result[routing.Route]
	Calls  atomic.Int32
}

// NewRouting returns a provider reporting a route of the given length.
func NewRouting(distanceMeters, durationSeconds float64) *Routing {
	return &Routing{result: provider.Ok(routing.Route{
		DistanceMeters:  distanceMeters,
		DurationSeconds: durationSeconds,
	})}
}

// Set replaces the result returned by subsequent calls.
func (r *Routing) Set(res provider.Result[routing.Route]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
}

// GetRoute implements routing.Provider.
func (r *Routing) GetRoute(_ context.Context, _, _ geo.Location) provider.Result[routing.Route] {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Name implements routing.Provider.
func (r *Routing) Name() string { return "fake-routing" }

// AirQuality returns a fixed result for every region.
type AirQuality struct {
	mu     sync.Mutex
	result provider.Result[airquality.Reading]
	Calls  atomic.Int32
}

// NewAirQuality returns a provider reporting the given index.
func NewAirQuality(index float64) *AirQuality {
	return &AirQuality{result: provider.Ok(airquality.Reading{Index: index})}
}

// Set replaces the result returned by subsequent calls.
func (a *AirQuality) Set(r provider.Result[airquality.Reading]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = r
}

// GetReading implements airquality.Provider.
func (a *AirQuality) GetReading(_ context.Context, region string) provider.Result[airquality.Reading] {
	a.Calls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if reading, ok := a.result.Get(); ok {
		reading.Region = region
		return provider.Ok(reading)
	}
	return a.result
}

// Name implements airquality.Provider.
func (a *AirQuality) Name() string { return "fake-airquality" }

// Package traffic provides live traffic flow samples for a location.
package traffic

import (
	"context"
	"time"

	"github.com/ecoroute/ecoroute/internal/provider"
)

// Provider defines the interface for traffic flow providers.
type Provider interface {
	// GetFlow returns the flow sample for the road segment nearest to lat/lon.
	GetFlow(ctx context.Context, lat, lon float64) provider.Result[Sample]
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Sample is a flow reading for one road segment.
// A nil field means the provider did not report it.
type Sample struct {
	CurrentSpeed       *float64 // km/h
	FreeFlowSpeed      *float64 // km/h
	CurrentTravelTime  *float64 // seconds
	FreeFlowTravelTime *float64 // seconds
	Confidence         *float64 // 0..1
	RoadClosure        bool
	FetchedAt          time.Time
}

// Complete reports whether every field the cost model depends on is present.
func (s Sample) Complete() bool {
	return s.CurrentSpeed != nil && s.FreeFlowSpeed != nil && s.CurrentTravelTime != nil
}

// Congestion returns the ratio of current to free-flow speed in [0, 1].
// It is 0 when the sample is incomplete or free-flow speed is zero.
func (s Sample) Congestion() float64 {
	if !s.Complete() || *s.FreeFlowSpeed <= 0 {
		return 0
	}
	ratio := *s.CurrentSpeed / *s.FreeFlowSpeed
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

// Float returns a pointer to v. Handy for building samples in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Package airquality provides region-level air quality readings and caching.
package airquality

import (
	"context"
	"time"

	"github.com/ecoroute/ecoroute/internal/provider"
)

// Provider defines the interface for air quality data providers.
type Provider interface {
	// GetReading returns the current reading for a named region feed (e.g. "mumbai").
	GetReading(ctx context.Context, region string) provider.Result[Reading]
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Reading is an air quality index observation for a region.
type Reading struct {
	Region     string
	Index      float64 // AQI, non-negative
	Station    string
	Dominant   string // dominant pollutant, when reported
	ObservedAt time.Time
	FetchedAt  time.Time
}

// Category is the AQI band a reading falls in.
type Category string

// AQI categories (US EPA breakpoints).
const (
	CategoryGood               Category = "good"
	CategoryModerate           Category = "moderate"
	CategoryUnhealthySensitive Category = "unhealthy_for_sensitive_groups"
	CategoryUnhealthy          Category = "unhealthy"
	CategoryVeryUnhealthy      Category = "very_unhealthy"
	CategoryHazardous          Category = "hazardous"
)

// Category returns the AQI band for the reading.
func (r Reading) Category() Category {
	switch {
	case r.Index <= 50:
		return CategoryGood
	case r.Index <= 100:
		return CategoryModerate
	case r.Index <= 150:
		return CategoryUnhealthySensitive
	case r.Index <= 200:
		return CategoryUnhealthy
	case r.Index <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

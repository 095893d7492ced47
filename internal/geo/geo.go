// Package geo provides locations, bounding regions and episode scenarios.
package geo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Sentinel errors for geographic validation.
var (
	// ErrInvalidCoordinates indicates a latitude or longitude outside the valid globe range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrOutOfBounds indicates a location outside the configured scenario region.
	ErrOutOfBounds = errors.New("location outside configured region")
)

// DestinationTolerance is the per-axis distance in degrees within which a start
// location counts as already being at its destination.
const DestinationTolerance = 0.01

// Location is a geographic point.
type Location struct {
	Lat float64
	Lon float64
}

// Validate checks that the location lies within [-90, 90] x [-180, 180].
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinates, l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinates, l.Lon)
	}
	return nil
}

// String renders the location as "lat,lon" with six decimals.
func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon)
}

// Region is an axis-aligned bounding box.
type Region struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Mumbai is the default scenario region.
var Mumbai = Region{
	Name:   "mumbai",
	MinLat: 18.5,
	MaxLat: 19.5,
	MinLon: 72.5,
	MaxLon: 73.5,
}

// Validate checks the region has ordered, valid bounds.
func (r Region) Validate() error {
	if err := (Location{Lat: r.MinLat, Lon: r.MinLon}).Validate(); err != nil {
		return err
	}
	if err := (Location{Lat: r.MaxLat, Lon: r.MaxLon}).Validate(); err != nil {
		return err
	}
	if r.MinLat > r.MaxLat || r.MinLon > r.MaxLon {
		return fmt.Errorf("%w: region %q has inverted bounds", ErrInvalidCoordinates, r.Name)
	}
	return nil
}

// Contains reports whether the location lies inside the region, edges included.
func (r Region) Contains(l Location) bool {
	return l.Lat >= r.MinLat && l.Lat <= r.MaxLat &&
		l.Lon >= r.MinLon && l.Lon <= r.MaxLon
}

// Check returns ErrOutOfBounds when the location is outside the region.
func (r Region) Check(l Location) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if !r.Contains(l) {
		return fmt.Errorf("%w: %s not in %s", ErrOutOfBounds, l, r.Name)
	}
	return nil
}

// Sample draws a location uniformly from the region using rng.
func (r Region) Sample(rng *rand.Rand) Location {
	return Location{
		Lat: r.MinLat + rng.Float64()*(r.MaxLat-r.MinLat),
		Lon: r.MinLon + rng.Float64()*(r.MaxLon-r.MinLon),
	}
}

// Scenario is the start/end pair of a single episode.
type Scenario struct {
	Start Location
	End   Location
}

// SampleScenario draws start and end independently from the region.
func (r Region) SampleScenario(rng *rand.Rand) Scenario {
	start := r.Sample(rng)
	end := r.Sample(rng)
	return Scenario{Start: start, End: end}
}

// Check validates both endpoints against the region.
func (s Scenario) Check(r Region) error {
	if err := r.Check(s.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := r.Check(s.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	return nil
}

// AtDestination reports whether start and end are within tolerance degrees
// of each other on both axes. The comparison is strict.
func (s Scenario) AtDestination(tolerance float64) bool {
	return math.Abs(s.Start.Lat-s.End.Lat) < tolerance &&
		math.Abs(s.Start.Lon-s.End.Lon) < tolerance
}

// Key returns a stable identifier for the scenario, used for per-episode caching.
func (s Scenario) Key() string {
	return s.Start.String() + ";" + s.End.String()
}

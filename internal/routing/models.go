// Package routing provides driving route geometry between two locations.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetRoute retrieves the primary driving route between two points.
	GetRoute(ctx context.Context, start, end geo.Location) provider.Result[Route]
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Route is the geometry record for a single route.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Summary         string
	Geometry        []geo.Location // simplified overview, may be empty
	Steps           []Step
	FetchedAt       time.Time
}

// Step is a single manoeuvre along the route.
type Step struct {
	Name            string
	Maneuver        string
	Modifier        string
	DistanceMeters  float64
	DurationSeconds float64
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

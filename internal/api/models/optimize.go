package models

import (
	"fmt"
	"strings"

	"github.com/ecoroute/ecoroute/internal/vehicle"
)

// OptimizeRequest is the body of POST /v1/routes:optimize. Pointer fields
// distinguish a missing coordinate from zero.
type OptimizeRequest struct {
	StartLat    *float64 `json:"start_lat"`
	StartLon    *float64 `json:"start_lon"`
	EndLat      *float64 `json:"end_lat"`
	EndLon      *float64 `json:"end_lon"`
	VehicleType string   `json:"vehicle_type"`
}

// Validate returns one FieldError per missing or malformed field.
func (r OptimizeRequest) Validate() []FieldError {
	var errs []FieldError

	coords := []struct {
		field string
		value *float64
		limit float64
	}{
		{"start_lat", r.StartLat, 90},
		{"start_lon", r.StartLon, 180},
		{"end_lat", r.EndLat, 90},
		{"end_lon", r.EndLon, 180},
	}
	for _, c := range coords {
		switch {
		case c.value == nil:
			errs = append(errs, FieldError{Field: c.field, Message: "required", Code: CodeRequired})
		case *c.value < -c.limit || *c.value > c.limit:
			errs = append(errs, FieldError{
				Field:   c.field,
				Message: fmt.Sprintf("must be between %g and %g", -c.limit, c.limit),
				Code:    CodeOutOfRange,
			})
		}
	}

	switch {
	case strings.TrimSpace(r.VehicleType) == "":
		errs = append(errs, FieldError{Field: "vehicle_type", Message: "required", Code: CodeRequired})
	case !vehicle.Type(r.VehicleType).Valid():
		errs = append(errs, FieldError{
			Field:   "vehicle_type",
			Message: "must be one of " + strings.Join(vehicleNames(), ", "),
			Code:    CodeInvalid,
		})
	}

	return errs
}

func vehicleNames() []string {
	all := vehicle.All()
	names := make([]string, len(all))
	for i, v := range all {
		names[i] = v.String()
	}
	return names
}

// OptimizeResponse is the recommendation returned to the caller.
type OptimizeResponse struct {
	RecommendedRoute     int          `json:"recommended_route"`
	VehicleType          string       `json:"vehicle_type"`
	RequestedVehicleType string       `json:"requested_vehicle_type"`
	RouteDetails         RouteDetails `json:"route_details"`
	Cost                 CostDetails  `json:"cost"`
	Observation          []float64    `json:"observation"`
	EpisodeID            string       `json:"episode_id"`
}

// RouteDetails is the routing provider record of the recommended route.
type RouteDetails struct {
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	Summary         string      `json:"summary,omitempty"`
	Polyline        string      `json:"polyline,omitempty"`
	Steps           []RouteStep `json:"steps,omitempty"`
}

// RouteStep is one manoeuvre of the route.
type RouteStep struct {
	Name            string  `json:"name,omitempty"`
	Maneuver        string  `json:"maneuver,omitempty"`
	Modifier        string  `json:"modifier,omitempty"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// CostDetails is the cost breakdown of the recommended route.
type CostDetails struct {
	TravelTime     float64 `json:"travel_time"`
	Emissions      float64 `json:"emissions"`
	TrafficPenalty float64 `json:"traffic_penalty"`
	Total          float64 `json:"total"`
}

// ReloadResponse is the body of POST /v1/admin/models/{name}:reload.
type ReloadResponse struct {
	Model ModelStatus `json:"model"`
}

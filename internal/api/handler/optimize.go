// Package handler holds the HTTP handlers of the route recommendation API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/api/middleware"
	"github.com/ecoroute/ecoroute/internal/api/models"
	"github.com/ecoroute/ecoroute/internal/api/response"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/routing/polyline"
	"github.com/ecoroute/ecoroute/internal/serving"
)

const maxRequestBody = 1 << 16

// Optimizer answers one recommendation per scenario.
type Optimizer interface {
	Optimize(ctx context.Context, scenario geo.Scenario) (serving.Recommendation, error)
	Region() geo.Region
}

// OptimizeHandler serves POST /v1/routes:optimize.
type OptimizeHandler struct {
	optimizer Optimizer
	logger    zerolog.Logger
}

// NewOptimizeHandler creates an OptimizeHandler.
func NewOptimizeHandler(optimizer Optimizer, logger zerolog.Logger) *OptimizeHandler {
	return &OptimizeHandler{optimizer: optimizer, logger: logger}
}

// Optimize recommends a route for the requested start and end.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req models.OptimizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "request body must be a JSON object", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request has invalid fields", errs)
		return
	}

	scenario := geo.Scenario{
		Start: geo.Location{Lat: *req.StartLat, Lon: *req.StartLon},
		End:   geo.Location{Lat: *req.EndLat, Lon: *req.EndLon},
	}

	rec, err := h.optimizer.Optimize(r.Context(), scenario)
	if err != nil {
		h.writeError(w, r, scenario, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.OptimizeResponse{
		RecommendedRoute:     rec.RouteID,
		VehicleType:          rec.Vehicle.String(),
		RequestedVehicleType: req.VehicleType,
		RouteDetails:         routeDetails(rec.Route),
		Cost: models.CostDetails{
			TravelTime:     rec.Breakdown.TravelTime,
			Emissions:      rec.Breakdown.Emissions,
			TrafficPenalty: rec.Breakdown.TrafficPenalty,
			Total:          rec.Breakdown.Total(),
		},
		Observation: []float64(rec.Observation),
		EpisodeID:   rec.EpisodeID.String(),
	})
}

func (h *OptimizeHandler) writeError(w http.ResponseWriter, r *http.Request, scenario geo.Scenario, err error) {
	switch {
	case errors.Is(err, geo.ErrOutOfBounds):
		region := h.optimizer.Region()
		response.OutOfRegion(w, r, "coordinates must lie within the "+region.Name+" region", regionErrors(region, scenario))
	case errors.Is(err, serving.ErrNoPolicy):
		response.ServiceUnavailable(w, r, "no route policy is loaded")
	case errors.Is(err, serving.ErrRouteUnavailable):
		response.RouteDataUnavailable(w, r, "failed to fetch route data")
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("route optimization failed")
		response.InternalError(w, r, "route optimization failed")
	}
}

func regionErrors(region geo.Region, scenario geo.Scenario) []models.FieldError {
	var errs []models.FieldError
	endpoints := []struct {
		prefix string
		loc    geo.Location
	}{
		{"start", scenario.Start},
		{"end", scenario.End},
	}
	for _, e := range endpoints {
		if !region.Contains(e.loc) {
			errs = append(errs, models.FieldError{
				Field:   e.prefix,
				Message: e.loc.String() + " is outside " + region.Name,
				Code:    models.CodeOutOfRegion,
			})
		}
	}
	return errs
}

func routeDetails(route routing.Route) models.RouteDetails {
	details := models.RouteDetails{
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		Summary:         route.Summary,
	}
	if len(route.Geometry) > 0 {
		if encoded, err := polyline.Encode(route.Geometry, polyline.Precision5); err == nil {
			details.Polyline = encoded
		}
	}
	for _, s := range route.Steps {
		details.Steps = append(details.Steps, models.RouteStep{
			Name:            s.Name,
			Maneuver:        s.Maneuver,
			Modifier:        s.Modifier,
			DistanceMeters:  s.DistanceMeters,
			DurationSeconds: s.DurationSeconds,
		})
	}
	return details
}

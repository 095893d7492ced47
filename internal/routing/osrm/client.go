// Package osrm provides a client for the OSRM route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/routing/polyline"
	"github.com/ecoroute/ecoroute/internal/telemetry"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultProfile is the OSRM routing profile.
	DefaultProfile = "driving"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// OSRM response codes that mean "answered, but no route".
var noRouteCodes = map[string]bool{
	"NoRoute":   true,
	"NoSegment": true,
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public demo server).
	BaseURL string

	// Profile is the routing profile (optional, defaults to "driving").
	Profile string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records call outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM API client.
type Client struct {
	baseURL    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetRoute retrieves the primary route between two points.
func (c *Client) GetRoute(ctx context.Context, start, end geo.Location) provider.Result[routing.Route] {
	// OSRM uses lon,lat order
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=simplified&geometries=polyline&steps=true",
		c.baseURL, c.profile, start.Lon, start.Lat, end.Lon, end.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return provider.TransportError[routing.Route](fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("origin_lat", start.Lat).
		Float64("origin_lon", start.Lon).
		Float64("dest_lat", end.Lat).
		Float64("dest_lon", end.Lon).
		Msg("requesting route from OSRM")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError[routing.Route](&routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.TransportError[routing.Route](fmt.Errorf("reading response body: %w", err))
	}

	var osrmResp routeResponse
	decodeErr := json.Unmarshal(body, &osrmResp)

	// OSRM answers NoRoute with a 400 and a well-formed body.
	if decodeErr == nil && noRouteCodes[osrmResp.Code] {
		return provider.Absent[routing.Route](fmt.Sprintf("%s: %s", osrmResp.Code, osrmResp.Message))
	}

	if resp.StatusCode != http.StatusOK {
		return provider.TransportError[routing.Route](c.statusError(resp.StatusCode, osrmResp))
	}

	if decodeErr != nil {
		return provider.TransportError[routing.Route](fmt.Errorf("decoding response: %w", decodeErr))
	}

	if osrmResp.Code != "Ok" {
		return provider.TransportError[routing.Route](&routing.Error{
			Provider: ProviderName,
			Code:     osrmResp.Code,
			Message:  osrmResp.Message,
			Err:      routing.ErrProviderUnavailable,
		})
	}

	if len(osrmResp.Routes) == 0 {
		return provider.Absent[routing.Route]("response contained no routes")
	}

	best := &osrmResp.Routes[0]
	if best.Distance == nil || best.Duration == nil {
		return provider.Absent[routing.Route]("route is missing distance or duration")
	}

	route := c.toRoute(best)

	c.logger.Debug().
		Float64("distance_m", route.DistanceMeters).
		Float64("duration_s", route.DurationSeconds).
		Int("steps", len(route.Steps)).
		Msg("received route from OSRM")

	return provider.Ok(route)
}

// statusError maps non-200 responses to routing errors.
func (c *Client) statusError(statusCode int, body routeResponse) error {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	default:
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("routing provider returned status %d", statusCode)
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  msg,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toRoute converts an OSRM route to the domain model.
func (c *Client) toRoute(r *osrmRoute) routing.Route {
	route := routing.Route{
		DistanceMeters:  *r.Distance,
		DurationSeconds: *r.Duration,
		FetchedAt:       time.Now(),
	}

	if r.Geometry != "" {
		points, err := polyline.Decode(r.Geometry, polyline.Precision5)
		if err != nil {
			c.logger.Warn().Err(err).Msg("discarding undecodable route geometry")
		} else {
			route.Geometry = points
		}
	}

	summaries := make([]string, 0, len(r.Legs))
	for _, leg := range r.Legs {
		if leg.Summary != "" {
			summaries = append(summaries, leg.Summary)
		}
		for _, s := range leg.Steps {
			route.Steps = append(route.Steps, routing.Step{
				Name:            s.Name,
				Maneuver:        s.Maneuver.Type,
				Modifier:        s.Maneuver.Modifier,
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
			})
		}
	}
	route.Summary = strings.Join(summaries, "; ")

	return route
}

// OSRM API response structures.

type routeResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance *float64  `json:"distance"`
	Duration *float64  `json:"duration"`
	Geometry string    `json:"geometry"`
	Legs     []osrmLeg `json:"legs"`
}

type osrmLeg struct {
	Summary string     `json:"summary"`
	Steps   []osrmStep `json:"steps"`
}

type osrmStep struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Maneuver struct {
		Type     string `json:"type"`
		Modifier string `json:"modifier"`
	} `json:"maneuver"`
}

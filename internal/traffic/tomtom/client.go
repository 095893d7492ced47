// Package tomtom provides a client for the TomTom Traffic Flow Segment API.
package tomtom

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/telemetry"
	"github.com/ecoroute/ecoroute/internal/traffic"
)

const (
	// ProviderName identifies this traffic provider.
	ProviderName = "tomtom"

	// DefaultBaseURL is the TomTom API base URL.
	DefaultBaseURL = "https://api.tomtom.com"

	// DefaultZoom is the zoom level used to select the flow segment.
	DefaultZoom = 10

	flowSegmentPath = "/traffic/services/4/flowSegmentData/absolute/%d/xml"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the TomTom client.
type ClientConfig struct {
	// APIKey is the TomTom API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to TomTom API).
	BaseURL string

	// Zoom selects the road segment granularity (optional, defaults to 10).
	Zoom int

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records call outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a TomTom traffic flow client.
type Client struct {
	apiKey     string
	baseURL    string
	zoom       int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new TomTom client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	zoom := cfg.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		zoom:       zoom,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetFlow fetches the flow segment nearest to the given point.
func (c *Client) GetFlow(ctx context.Context, lat, lon float64) provider.Result[traffic.Sample] {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("point", fmt.Sprintf("%.6f,%.6f", lat, lon))
	endpoint := c.baseURL + fmt.Sprintf(flowSegmentPath, c.zoom) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return provider.TransportError[traffic.Sample](fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError[traffic.Sample](fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("tomtom returned non-200 status")
		return provider.TransportError[traffic.Sample](fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var segment flowSegmentData
	if err := xml.NewDecoder(resp.Body).Decode(&segment); err != nil {
		return provider.TransportError[traffic.Sample](fmt.Errorf("decoding response: %w", err))
	}

	if segment.CurrentSpeed == nil && segment.FreeFlowSpeed == nil && segment.CurrentTravelTime == nil {
		return provider.Absent[traffic.Sample]("flow segment carries no speed data")
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("frc", segment.FRC).
		Msg("received flow segment from tomtom")

	return provider.Ok(segment.toSample())
}

// TomTom flowSegmentData XML structure.
type flowSegmentData struct {
	XMLName            xml.Name `xml:"flowSegmentData"`
	FRC                string   `xml:"frc"`
	CurrentSpeed       *float64 `xml:"currentSpeed"`
	FreeFlowSpeed      *float64 `xml:"freeFlowSpeed"`
	CurrentTravelTime  *float64 `xml:"currentTravelTime"`
	FreeFlowTravelTime *float64 `xml:"freeFlowTravelTime"`
	Confidence         *float64 `xml:"confidence"`
	RoadClosure        bool     `xml:"roadClosure"`
}

func (f *flowSegmentData) toSample() traffic.Sample {
	return traffic.Sample{
		CurrentSpeed:       f.CurrentSpeed,
		FreeFlowSpeed:      f.FreeFlowSpeed,
		CurrentTravelTime:  f.CurrentTravelTime,
		FreeFlowTravelTime: f.FreeFlowTravelTime,
		Confidence:         f.Confidence,
		RoadClosure:        f.RoadClosure,
		FetchedAt:          time.Now(),
	}
}

// Package waqi provides a client for the World Air Quality Index (aqicn.org) feed API.
package waqi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/telemetry"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "waqi"

	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the aqicn API token (required).
	Token string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records call outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a WAQI API client.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
			Metrics:         cfg.Metrics,
			Logger:          &cfg.Logger,
		})
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types (from the WAQI feed API).

type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI         json.RawMessage `json:"aqi"`
	Idx         int             `json:"idx"`
	DominentPol string          `json:"dominentpol"`
	City        struct {
		Name string `json:"name"`
	} `json:"city"`
	Time struct {
		ISO string `json:"iso"`
		V   int64  `json:"v"`
	} `json:"time"`
}

// GetReading fetches the current feed for a named region.
func (c *Client) GetReading(ctx context.Context, region string) provider.Result[airquality.Reading] {
	endpoint := fmt.Sprintf("%s/feed/%s/?token=%s", c.baseURL, url.PathEscape(region), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return provider.TransportError[airquality.Reading](fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError[airquality.Reading](fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.TransportError[airquality.Reading](fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return provider.TransportError[airquality.Reading](fmt.Errorf("decoding response: %w", err))
	}

	if feed.Status != "ok" {
		var message string
		_ = json.Unmarshal(feed.Data, &message)
		c.logger.Warn().
			Str("region", region).
			Str("status", feed.Status).
			Str("message", message).
			Msg("waqi feed returned non-ok status")
		return provider.Absent[airquality.Reading](fmt.Sprintf("feed status %q: %s", feed.Status, message))
	}

	var data feedData
	if err := json.Unmarshal(feed.Data, &data); err != nil {
		return provider.TransportError[airquality.Reading](fmt.Errorf("decoding feed data: %w", err))
	}

	index, ok := parseAQI(data.AQI)
	if !ok {
		return provider.Absent[airquality.Reading]("feed has no aqi value")
	}

	reading := airquality.Reading{
		Region:    region,
		Index:     index,
		Station:   data.City.Name,
		Dominant:  data.DominentPol,
		FetchedAt: time.Now(),
	}
	if data.Time.V > 0 {
		reading.ObservedAt = time.Unix(data.Time.V, 0)
	}

	c.logger.Debug().
		Str("region", region).
		Float64("aqi", index).
		Str("station", reading.Station).
		Msg("received air quality reading")

	return provider.Ok(reading)
}

// parseAQI accepts a JSON number or numeric string. WAQI reports "-" for stations
// without a current value.
func parseAQI(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return clampNonNegative(n), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return clampNonNegative(n), true
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

package osrm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/routing/osrm"
)

var (
	start = geo.Location{Lat: 19.0596, Lon: 72.8295}
	end   = geo.Location{Lat: 18.9067, Lon: 72.8147}
)

const routeJSON = `{
  "code": "Ok",
  "routes": [{
    "distance": 21543.2,
    "duration": 2210.7,
    "geometry": "_p~iF~ps|U_ulLnnqC",
    "legs": [{
      "summary": "Western Express Highway, Marine Drive",
      "steps": [
        {"name": "Hill Road", "distance": 350.1, "duration": 60.2, "maneuver": {"type": "depart"}},
        {"name": "Marine Drive", "distance": 21193.1, "duration": 2150.5, "maneuver": {"type": "turn", "modifier": "left"}}
      ]
    }]
  }]
}`

func newTestClient(url string) *osrm.Client {
	return osrm.NewClient(osrm.ClientConfig{
		BaseURL: url,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:      "osrm-test",
			NoRetries: true,
		}),
	})
}

func TestClient_GetRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/driving/72.829500,19.059600;72.814700,18.906700", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("steps"))
		assert.Equal(t, "polyline", r.URL.Query().Get("geometries"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(routeJSON))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	require.True(t, result.OK(), result.Detail())
	route, _ := result.Get()
	assert.Equal(t, 21543.2, route.DistanceMeters)
	assert.Equal(t, 2210.7, route.DurationSeconds)
	assert.Equal(t, "Western Express Highway, Marine Drive", route.Summary)
	require.Len(t, route.Steps, 2)
	assert.Equal(t, "turn", route.Steps[1].Maneuver)
	assert.Equal(t, "left", route.Steps[1].Modifier)
	require.Len(t, route.Geometry, 2)
	assert.InDelta(t, 38.5, route.Geometry[0].Lat, 1e-9)
}

func TestClient_GetRoute_NoRouteIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points"}`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusAbsent, result.Status())
	assert.Contains(t, result.Detail(), "NoRoute")
}

func TestClient_GetRoute_EmptyRoutesIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusAbsent, result.Status())
}

func TestClient_GetRoute_MissingMeasuresIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no distance or duration", body: `{"code":"Ok","routes":[{"legs":[]}]}`},
		{name: "no distance", body: `{"code":"Ok","routes":[{"duration":120.5,"legs":[]}]}`},
		{name: "no duration", body: `{"code":"Ok","routes":[{"distance":900,"legs":[]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

			assert.Equal(t, provider.StatusAbsent, result.Status())
			assert.Contains(t, result.Detail(), "missing distance or duration")
		})
	}
}

func TestClient_GetRoute_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "rate limit")
}

func TestClient_GetRoute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "502")
}

func TestClient_GetRoute_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "decoding response")
}

func TestClient_GetRoute_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestClient(url).GetRoute(context.Background(), start, end)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "unavailable")
}

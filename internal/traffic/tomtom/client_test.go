package tomtom_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/traffic/tomtom"
)

const flowXML = `<?xml version="1.0" encoding="UTF-8"?>
<flowSegmentData frc="FRC2" version="traffic-service-flow 1.0.120">
  <frc>FRC2</frc>
  <currentSpeed>41</currentSpeed>
  <freeFlowSpeed>64</freeFlowSpeed>
  <currentTravelTime>81</currentTravelTime>
  <freeFlowTravelTime>52</freeFlowTravelTime>
  <confidence>0.95</confidence>
  <roadClosure>false</roadClosure>
</flowSegmentData>`

func newTestClient(url string) *tomtom.Client {
	return tomtom.NewClient(tomtom.ClientConfig{
		APIKey:  "test-key",
		BaseURL: url,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:      "tomtom-test",
			NoRetries: true,
		}),
	})
}

func TestClient_GetFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/traffic/services/4/flowSegmentData/absolute/10/xml", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "19.076100,72.877500", r.URL.Query().Get("point"))

		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(flowXML))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetFlow(context.Background(), 19.0761, 72.8775)

	require.True(t, result.OK(), result.Detail())
	sample, _ := result.Get()
	assert.True(t, sample.Complete())
	assert.Equal(t, 41.0, *sample.CurrentSpeed)
	assert.Equal(t, 64.0, *sample.FreeFlowSpeed)
	assert.Equal(t, 81.0, *sample.CurrentTravelTime)
	assert.Equal(t, 52.0, *sample.FreeFlowTravelTime)
	assert.Equal(t, 0.95, *sample.Confidence)
	assert.False(t, sample.RoadClosure)
	assert.False(t, sample.FetchedAt.IsZero())
}

func TestClient_GetFlow_MissingFieldIsIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<flowSegmentData><currentSpeed>20</currentSpeed><currentTravelTime>300</currentTravelTime></flowSegmentData>`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetFlow(context.Background(), 19.0, 72.8)

	require.True(t, result.OK())
	sample, _ := result.Get()
	assert.Nil(t, sample.FreeFlowSpeed)
	assert.False(t, sample.Complete())
}

func TestClient_GetFlow_NoSpeedDataIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<flowSegmentData><frc>FRC7</frc></flowSegmentData>`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetFlow(context.Background(), 19.0, 72.8)

	assert.Equal(t, provider.StatusAbsent, result.Status())
}

func TestClient_GetFlow_Non200IsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetFlow(context.Background(), 19.0, 72.8)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "403")
}

func TestClient_GetFlow_MalformedXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"xml"}`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).GetFlow(context.Background(), 19.0, 72.8)

	assert.Equal(t, provider.StatusTransportError, result.Status())
	assert.Contains(t, result.Detail(), "decoding response")
}

func TestClient_GetFlow_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestClient(url).GetFlow(context.Background(), 19.0, 72.8)

	assert.Equal(t, provider.StatusTransportError, result.Status())
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "tomtom", tomtom.NewClient(tomtom.ClientConfig{}).Name())
}

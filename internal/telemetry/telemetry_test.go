package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ecoroute/ecoroute/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "ecoroute-trainer",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	assert.NoError(t, (&telemetry.Provider{}).Shutdown(context.Background()))
}

func TestConfig_Sampler(t *testing.T) {
	assert.Contains(t, telemetry.Config{}.Sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Config{SampleRatio: 0.1}.Sampler().Description(), "TraceIDRatioBased")
}

func TestProviderMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewProviderMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Record(ctx, "tomtom", telemetry.OutcomeSuccess, 120*time.Millisecond)
	m.Record(ctx, "tomtom", telemetry.OutcomeFailure, 2*time.Second)
	m.Record(ctx, "osrm", telemetry.OutcomeSuccess, 80*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var total int64
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if md.Name != "provider.calls" {
			continue
		}
		sum, ok := md.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
		assert.Len(t, sum.DataPoints, 3)
	}
	assert.Equal(t, int64(3), total)
}

func TestProviderMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.ProviderMetrics
	assert.NotPanics(t, func() {
		m.Record(context.Background(), "waqi", telemetry.OutcomeSuccess, time.Second)
	})
}

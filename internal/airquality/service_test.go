package airquality_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/provider"
)

// mockProvider is a test provider that returns configurable readings.
type mockProvider struct {
	mu         sync.Mutex
	result     provider.Result[airquality.Reading]
	fetchCount atomic.Int32
}

func (m *mockProvider) GetReading(_ context.Context, _ string) provider.Result[airquality.Reading] {
	m.fetchCount.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) set(r provider.Result[airquality.Reading]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func reading(index float64) airquality.Reading {
	return airquality.Reading{Region: "mumbai", Index: index, FetchedAt: time.Now()}
}

func TestService_GetReading_CachesFreshData(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(reading(87))}
	svc := airquality.NewService(airquality.ServiceConfig{Provider: mock, Logger: testLogger()})

	first := svc.GetReading(context.Background(), "mumbai")
	second := svc.GetReading(context.Background(), "mumbai")

	require.True(t, first.OK())
	got, _ := second.Get()
	assert.Equal(t, 87.0, got.Index)
	assert.Equal(t, int32(1), mock.fetchCount.Load())
}

func TestService_GetReading_CacheIsPerRegion(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(reading(87))}
	svc := airquality.NewService(airquality.ServiceConfig{Provider: mock, Logger: testLogger()})

	svc.GetReading(context.Background(), "mumbai")
	svc.GetReading(context.Background(), "delhi")

	assert.Equal(t, int32(2), mock.fetchCount.Load())
}

func TestService_GetReading_StaleIfError(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(reading(120))}
	svc := airquality.NewService(airquality.ServiceConfig{
		Provider:        mock,
		Logger:          testLogger(),
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	require.True(t, svc.GetReading(context.Background(), "mumbai").OK())
	time.Sleep(5 * time.Millisecond)

	mock.set(provider.TransportError[airquality.Reading](errors.New("503")))
	result := svc.GetReading(context.Background(), "mumbai")

	require.True(t, result.OK())
	got, _ := result.Get()
	assert.Equal(t, 120.0, got.Index)

	status := svc.CacheStatus("mumbai")
	assert.True(t, status.HasData)
	assert.True(t, status.IsExpired)
	assert.False(t, status.IsStale)
}

func TestService_GetReading_StaleWindowExceeded(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(airquality.Reading{Index: 50, FetchedAt: time.Now().Add(-2 * time.Hour)})}
	svc := airquality.NewService(airquality.ServiceConfig{
		Provider:        mock,
		Logger:          testLogger(),
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	svc.GetReading(context.Background(), "mumbai")
	time.Sleep(5 * time.Millisecond)

	mock.set(provider.TransportError[airquality.Reading](errors.New("timeout")))
	result := svc.GetReading(context.Background(), "mumbai")

	assert.Equal(t, provider.StatusTransportError, result.Status())
}

func TestService_GetReading_AbsentPassesThrough(t *testing.T) {
	mock := &mockProvider{result: provider.Absent[airquality.Reading]("no aqi")}
	svc := airquality.NewService(airquality.ServiceConfig{Provider: mock, Logger: testLogger()})

	result := svc.GetReading(context.Background(), "mumbai")

	assert.Equal(t, provider.StatusAbsent, result.Status())
	assert.False(t, svc.CacheStatus("mumbai").HasData)
}

func TestService_InvalidateCache(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(reading(40))}
	svc := airquality.NewService(airquality.ServiceConfig{Provider: mock, Logger: testLogger()})

	svc.GetReading(context.Background(), "mumbai")
	svc.InvalidateCache()
	svc.GetReading(context.Background(), "mumbai")

	assert.Equal(t, int32(2), mock.fetchCount.Load())
}

func TestService_ConcurrentAccess(t *testing.T) {
	mock := &mockProvider{result: provider.Ok(reading(60))}
	svc := airquality.NewService(airquality.ServiceConfig{Provider: mock, Logger: testLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, svc.GetReading(context.Background(), "mumbai").OK())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), mock.fetchCount.Load())
}

func TestReading_Category(t *testing.T) {
	tests := []struct {
		index    float64
		expected airquality.Category
	}{
		{0, airquality.CategoryGood},
		{50, airquality.CategoryGood},
		{51, airquality.CategoryModerate},
		{150, airquality.CategoryUnhealthySensitive},
		{200, airquality.CategoryUnhealthy},
		{300, airquality.CategoryVeryUnhealthy},
		{301, airquality.CategoryHazardous},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, airquality.Reading{Index: tt.index}.Category())
	}
}

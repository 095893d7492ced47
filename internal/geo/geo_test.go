package geo_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/geo"
)

func TestRegion_SampleStaysInside(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		loc := geo.Mumbai.Sample(rng)
		assert.True(t, geo.Mumbai.Contains(loc), "sample %d outside region: %s", i, loc)
	}
}

func TestRegion_SampleIsDeterministicForSeed(t *testing.T) {
	a := geo.Mumbai.SampleScenario(rand.New(rand.NewSource(7)))
	b := geo.Mumbai.SampleScenario(rand.New(rand.NewSource(7)))

	assert.Equal(t, a, b)
}

func TestRegion_Check(t *testing.T) {
	tests := []struct {
		name    string
		loc     geo.Location
		wantErr error
	}{
		{"inside", geo.Location{Lat: 19.0, Lon: 72.9}, nil},
		{"on edge", geo.Location{Lat: 18.5, Lon: 73.5}, nil},
		{"outside region", geo.Location{Lat: 52.37, Lon: 4.89}, geo.ErrOutOfBounds},
		{"invalid latitude", geo.Location{Lat: 91, Lon: 72.9}, geo.ErrInvalidCoordinates},
		{"invalid longitude", geo.Location{Lat: 19, Lon: -181}, geo.ErrInvalidCoordinates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := geo.Mumbai.Check(tt.loc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegion_Validate(t *testing.T) {
	require.NoError(t, geo.Mumbai.Validate())

	inverted := geo.Region{Name: "bad", MinLat: 20, MaxLat: 19, MinLon: 72, MaxLon: 73}
	assert.ErrorIs(t, inverted.Validate(), geo.ErrInvalidCoordinates)
}

func TestScenario_AtDestination(t *testing.T) {
	tests := []struct {
		name     string
		scenario geo.Scenario
		expected bool
	}{
		{
			name:     "within tolerance on both axes",
			scenario: geo.Scenario{Start: geo.Location{Lat: 19.0, Lon: 72.9}, End: geo.Location{Lat: 19.005, Lon: 72.905}},
			expected: true,
		},
		{
			name:     "far apart",
			scenario: geo.Scenario{Start: geo.Location{Lat: 18.6, Lon: 72.6}, End: geo.Location{Lat: 19.4, Lon: 73.4}},
			expected: false,
		},
		{
			name:     "close latitude only",
			scenario: geo.Scenario{Start: geo.Location{Lat: 19.0, Lon: 72.6}, End: geo.Location{Lat: 19.001, Lon: 72.9}},
			expected: false,
		},
		{
			name:     "identical",
			scenario: geo.Scenario{Start: geo.Location{Lat: 19.0, Lon: 72.9}, End: geo.Location{Lat: 19.0, Lon: 72.9}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.scenario.AtDestination(geo.DestinationTolerance))
		})
	}
}

func TestScenario_Check(t *testing.T) {
	s := geo.Scenario{Start: geo.Location{Lat: 19.0, Lon: 72.9}, End: geo.Location{Lat: 10, Lon: 72.9}}

	err := s.Check(geo.Mumbai)
	require.Error(t, err)
	assert.ErrorIs(t, err, geo.ErrOutOfBounds)
	assert.Contains(t, err.Error(), "end")
}

package catalog_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/catalog"
	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

var scenario = geo.Scenario{
	Start: geo.Location{Lat: 19.2, Lon: 72.9},
	End:   geo.Location{Lat: 18.9, Lon: 72.8},
}

func newBuilder(rt *fake.Routing) *catalog.Builder {
	model := cost.NewModel(cost.ModelConfig{
		Traffic: fake.NewTraffic(35, 55, 500),
		Routing: rt,
		Logger:  zerolog.Nop(),
	})
	return catalog.NewBuilder(model, zerolog.Nop())
}

func TestBuild_SizeAndIDs(t *testing.T) {
	routes := newBuilder(fake.NewRouting(9000, 1100)).
		Build(context.Background(), scenario, rand.New(rand.NewSource(1)))

	require.Len(t, routes, catalog.Size)
	for i, r := range routes {
		assert.Equal(t, i, r.ID)
		assert.True(t, r.Vehicle.Valid())
		require.True(t, r.Present())
		assert.Equal(t, r.Vehicle, r.Route.Vehicle)
	}
}

func TestBuild_DeterministicForSeed(t *testing.T) {
	b := newBuilder(fake.NewRouting(9000, 1100))

	first := b.Build(context.Background(), scenario, rand.New(rand.NewSource(42)))
	second := b.Build(context.Background(), scenario, rand.New(rand.NewSource(42)))

	for i := range first {
		assert.Equal(t, first[i].Vehicle, second[i].Vehicle)
	}
}

func TestBuild_AbsentDataKeepsSlots(t *testing.T) {
	rt := fake.NewRouting(9000, 1100)
	rt.Set(provider.TransportError[routing.Route](errors.New("connection reset")))

	routes := newBuilder(rt).Build(context.Background(), scenario, rand.New(rand.NewSource(7)))

	require.Len(t, routes, catalog.Size)
	for i, r := range routes {
		assert.Equal(t, i, r.ID)
		assert.False(t, r.Present())
		assert.Nil(t, r.Route)
	}
}

func TestBuild_VehiclesCoverEnumOverManyDraws(t *testing.T) {
	b := newBuilder(fake.NewRouting(9000, 1100))
	rng := rand.New(rand.NewSource(3))

	seen := map[vehicle.Type]bool{}
	for i := 0; i < 50; i++ {
		for _, r := range b.Build(context.Background(), scenario, rng) {
			seen[r.Vehicle] = true
		}
	}
	assert.Len(t, seen, vehicle.Count)
}

package environment_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/airquality"
	"github.com/ecoroute/ecoroute/internal/catalog"
	"github.com/ecoroute/ecoroute/internal/emissions"
	"github.com/ecoroute/ecoroute/internal/encoder"
	"github.com/ecoroute/ecoroute/internal/environment"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
)

var (
	farApart = geo.Scenario{
		Start: geo.Location{Lat: 19.10, Lon: 72.85},
		End:   geo.Location{Lat: 18.95, Lon: 72.82},
	}
	coincident = geo.Scenario{
		Start: geo.Location{Lat: 19.000, Lon: 72.800},
		End:   geo.Location{Lat: 19.005, Lon: 72.805},
	}
)

type fixture struct {
	traffic *fake.Traffic
	routing *fake.Routing
	air     *fake.AirQuality
	env     *environment.Env
}

func newFixture(t *testing.T, cache bool) *fixture {
	t.Helper()
	f := &fixture{
		traffic: fake.NewTraffic(30, 60, 400),
		routing: fake.NewRouting(10000, 1200),
		air:     fake.NewAirQuality(110),
	}
	env, err := environment.New(environment.Config{
		Traffic:      f.traffic,
		Routing:      f.routing,
		AirQuality:   f.air,
		Rand:         rand.New(rand.NewSource(11)),
		EpisodeCache: cache,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	f.env = env
	return f
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := environment.New(environment.Config{})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidRegion(t *testing.T) {
	_, err := environment.New(environment.Config{
		Region:     geo.Region{Name: "bad", MinLat: 20, MaxLat: 10, MinLon: 0, MaxLon: 1},
		Traffic:    fake.NewTraffic(1, 1, 1),
		Routing:    fake.NewRouting(1, 1),
		AirQuality: fake.NewAirQuality(1),
	})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestSpecs(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, 3, f.env.ActionSpec().N)
	assert.Equal(t, 10, f.env.ObservationSpec().Length)
	assert.Equal(t, 0.0, f.env.ObservationSpec().Low)
}

func TestStep_BeforeReset(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, environment.StateUninitialized, f.env.State())
	assert.Equal(t, uuid.Nil, f.env.EpisodeID())

	_, err := f.env.Step(context.Background(), 0)
	assert.ErrorIs(t, err, environment.ErrNotReady)
}

func TestReset_SamplesWithinRegion(t *testing.T) {
	f := newFixture(t, false)

	for i := 0; i < 20; i++ {
		obs, err := f.env.Reset(context.Background())
		require.NoError(t, err)
		require.Len(t, obs, encoder.Length)

		s := f.env.Scenario()
		assert.True(t, geo.Mumbai.Contains(s.Start))
		assert.True(t, geo.Mumbai.Contains(s.End))
		assert.Len(t, f.env.Routes(), catalog.Size)
		assert.Equal(t, environment.StateReady, f.env.State())
	}
}

func TestReset_ObservationUsesFirstRouteVehicle(t *testing.T) {
	f := newFixture(t, false)

	obs, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	v, ok := obs.Vehicle()
	require.True(t, ok)
	assert.Equal(t, f.env.Routes()[0].Vehicle, v)
	assert.Equal(t, 110.0, obs[encoder.AirQuality])
}

func TestReset_NewEpisodeID(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.env.Reset(context.Background())
	require.NoError(t, err)
	first := f.env.EpisodeID()

	_, err = f.env.Reset(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first)
	assert.NotEqual(t, first, f.env.EpisodeID())
}

func TestResetWith_OutOfBounds(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.env.ResetWith(context.Background(), geo.Scenario{
		Start: geo.Location{Lat: 52.37, Lon: 4.89},
		End:   farApart.End,
	})
	assert.ErrorIs(t, err, geo.ErrOutOfBounds)
}

func TestReset_CanceledContext(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.env.Reset(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelingRouting cancels the armed context on its first call, mimicking a
// caller that gives up while the candidate routes are being fetched.
type cancelingRouting struct {
	routing.Provider

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *cancelingRouting) arm(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
}

func (c *cancelingRouting) GetRoute(ctx context.Context, start, end geo.Location) provider.Result[routing.Route] {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	return c.Provider.GetRoute(ctx, start, end)
}

func newCancelingEnv(t *testing.T) (*environment.Env, *cancelingRouting) {
	t.Helper()
	routes := &cancelingRouting{Provider: fake.NewRouting(10000, 1200)}
	env, err := environment.New(environment.Config{
		Traffic:    fake.NewTraffic(30, 60, 400),
		Routing:    routes,
		AirQuality: fake.NewAirQuality(110),
		Rand:       rand.New(rand.NewSource(5)),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return env, routes
}

func TestReset_CanceledMidBuildLeavesEnvUninitialized(t *testing.T) {
	env, routes := newCancelingEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routes.arm(cancel)

	obs, err := env.ResetWith(ctx, farApart)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, obs)
	assert.Equal(t, environment.StateUninitialized, env.State())
	assert.Equal(t, uuid.Nil, env.EpisodeID())

	_, err = env.Step(context.Background(), 0)
	assert.ErrorIs(t, err, environment.ErrNotReady)
}

func TestReset_CanceledMidBuildKeepsPreviousEpisode(t *testing.T) {
	env, routes := newCancelingEnv(t)
	_, err := env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	episode := env.EpisodeID()
	candidates := env.Routes()
	observation := env.Observation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routes.arm(cancel)

	_, err = env.ResetWith(ctx, coincident)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, environment.StateReady, env.State())
	assert.Equal(t, episode, env.EpisodeID())
	assert.Equal(t, farApart, env.Scenario())
	assert.Equal(t, candidates, env.Routes())
	assert.Equal(t, observation, env.Observation())

	res, err := env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, res.Terminal)
}

func TestStep_InvalidAction(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)
	before := f.env.Observation()

	for _, action := range []int{-1, 3, 100} {
		_, err := f.env.Step(context.Background(), action)
		assert.ErrorIs(t, err, environment.ErrInvalidAction)
	}
	assert.Equal(t, before, f.env.Observation())
	assert.Equal(t, environment.StateReady, f.env.State())
}

func TestStep_RewardIsNegatedTotal(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	for action := 0; action < catalog.Size; action++ {
		res, err := f.env.Step(context.Background(), action)
		require.NoError(t, err)

		v := f.env.Routes()[action].Vehicle
		expected := -(400 + 30 + 10000*emissions.Factor(v)/1000)
		assert.InDelta(t, expected, res.Reward, 1e-9)
		assert.LessOrEqual(t, res.Reward, 0.0)
		assert.Empty(t, res.Info)

		got, _ := res.Observation.Vehicle()
		assert.Equal(t, v, got)
	}
}

func TestStep_TerminalOnlyWhenEndpointsCoincide(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)
	res, err := f.env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, res.Terminal)
	assert.Equal(t, environment.StateReady, f.env.State())

	_, err = f.env.ResetWith(context.Background(), coincident)
	require.NoError(t, err)
	res, err = f.env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.Equal(t, environment.StateTerminal, f.env.State())
}

func TestStep_AbsentDataTerminatesWithZeroReward(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)
	before := f.env.Observation()

	f.routing.Set(provider.TransportError[routing.Route](errors.New("timeout")))
	res, err := f.env.Step(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Reward)
	assert.True(t, res.Terminal)
	assert.Equal(t, before, res.Observation)
	assert.Equal(t, true, res.Info[environment.AbsentKey])
}

func TestReset_AbsentDataYieldsZeroObservation(t *testing.T) {
	f := newFixture(t, false)
	f.traffic.Set(provider.Absent[traffic.Sample]("no segment"))

	obs, err := f.env.ResetWith(context.Background(), farApart)

	require.NoError(t, err)
	assert.Equal(t, encoder.Zero(), obs)
	for _, r := range f.env.Routes() {
		assert.False(t, r.Present())
	}
}

func TestStep_AfterTerminalIsAllowed(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), coincident)
	require.NoError(t, err)

	_, err = f.env.Step(context.Background(), 0)
	require.NoError(t, err)
	res, err := f.env.Step(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
}

func TestStep_AbsentAirQualityOnlyZeroesThatFeature(t *testing.T) {
	f := newFixture(t, false)
	f.air.Set(provider.Absent[airquality.Reading]("no aqi"))
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	res, err := f.env.Step(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Observation[encoder.AirQuality])
	assert.Equal(t, 400.0, res.Observation[encoder.TravelTime])
	assert.Less(t, res.Reward, 0.0)
}

func TestEpisodeCache_Disabled_RequeriesEveryStep(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)
	afterReset := f.traffic.Calls.Load()

	_, err = f.env.Step(context.Background(), 0)
	require.NoError(t, err)

	// One evaluation for the reward and one for the observation.
	assert.Equal(t, afterReset+2, f.traffic.Calls.Load())
}

func TestEpisodeCache_Enabled_FetchesOncePerVehicle(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	distinct := map[string]bool{}
	for _, r := range f.env.Routes() {
		distinct[r.Vehicle.String()] = true
	}
	assert.Equal(t, int32(len(distinct)), f.traffic.Calls.Load())
	assert.Equal(t, int32(1), f.air.Calls.Load())

	for i := 0; i < 5; i++ {
		_, err := f.env.Step(context.Background(), i%catalog.Size)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(len(distinct)), f.traffic.Calls.Load())
	assert.Equal(t, int32(1), f.air.Calls.Load())

	_, err = f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)
	assert.Greater(t, f.traffic.Calls.Load(), int32(len(distinct)))
}

func TestRoutes_ReturnsCopy(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	routes := f.env.Routes()
	routes[0].ID = 99
	assert.Equal(t, 0, f.env.Routes()[0].ID)
}

func TestTimeLimit(t *testing.T) {
	f := newFixture(t, false)
	env := environment.WithTimeLimit(f.env, 2)

	_, err := f.env.ResetWith(context.Background(), farApart)
	require.NoError(t, err)

	res, err := env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, res.Terminal)

	res, err = env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.Equal(t, true, res.Info[environment.TruncatedKey])

	_, err = env.Reset(context.Background())
	require.NoError(t, err)
	_, err = env.Step(context.Background(), 5)
	assert.ErrorIs(t, err, environment.ErrInvalidAction)
}

func TestTimeLimit_NaturalTerminalNotTruncated(t *testing.T) {
	f := newFixture(t, false)
	env := environment.WithTimeLimit(f.env, 1)

	_, err := f.env.ResetWith(context.Background(), coincident)
	require.NoError(t, err)

	res, err := env.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.NotContains(t, res.Info, environment.TruncatedKey)
}

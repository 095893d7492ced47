package cost_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/cost"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/traffic"
	"github.com/ecoroute/ecoroute/internal/vehicle"
)

var scenario = geo.Scenario{
	Start: geo.Location{Lat: 19.0596, Lon: 72.8295},
	End:   geo.Location{Lat: 18.9067, Lon: 72.8147},
}

func sample(speed, freeFlow, travel float64) traffic.Sample {
	return traffic.Sample{
		CurrentSpeed:      traffic.Float(speed),
		FreeFlowSpeed:     traffic.Float(freeFlow),
		CurrentTravelTime: traffic.Float(travel),
	}
}

func TestCost_Components(t *testing.T) {
	route := &routing.Route{DistanceMeters: 10000, DurationSeconds: 900}

	b, ok := cost.Cost(vehicle.LargeCar, sample(40, 60, 300), route)

	require.True(t, ok)
	assert.Equal(t, 300.0, b.TravelTime)
	assert.Equal(t, 40.0, b.TrafficPenalty)
	assert.InDelta(t, 10000*0.21/1000, b.Emissions, 1e-12)
	assert.InDelta(t, 300+40+2.1, b.Total(), 1e-12)
}

func TestCost_InvalidWhenAnyFieldMissing(t *testing.T) {
	route := &routing.Route{DistanceMeters: 10000, DurationSeconds: 900}

	missingSpeed := sample(40, 60, 300)
	missingSpeed.CurrentSpeed = nil
	missingFreeFlow := sample(40, 60, 300)
	missingFreeFlow.FreeFlowSpeed = nil
	missingTravel := sample(40, 60, 300)
	missingTravel.CurrentTravelTime = nil

	for name, s := range map[string]traffic.Sample{
		"current speed":       missingSpeed,
		"free flow speed":     missingFreeFlow,
		"current travel time": missingTravel,
	} {
		t.Run(name, func(t *testing.T) {
			b, ok := cost.Cost(vehicle.Bus, s, route)
			assert.False(t, ok)
			assert.Equal(t, cost.Breakdown{}, b)
		})
	}

	_, ok := cost.Cost(vehicle.Bus, sample(40, 60, 300), nil)
	assert.False(t, ok)
}

func TestCost_InvalidWithoutRouteMeasures(t *testing.T) {
	tests := []struct {
		name  string
		route *routing.Route
	}{
		{name: "empty route", route: &routing.Route{}},
		{name: "zero distance", route: &routing.Route{DurationSeconds: 900}},
		{name: "zero duration", route: &routing.Route{DistanceMeters: 10000}},
		{name: "negative distance", route: &routing.Route{DistanceMeters: -5, DurationSeconds: 900}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := cost.Cost(vehicle.Bus, sample(40, 60, 300), tt.route)
			assert.False(t, ok)
			assert.Equal(t, cost.Breakdown{}, b)
		})
	}
}

func TestCost_ClampsNegativeReadings(t *testing.T) {
	route := &routing.Route{DistanceMeters: 10000, DurationSeconds: 900}

	b, ok := cost.Cost(vehicle.Bus, sample(-12, 60, -300), route)

	require.True(t, ok)
	assert.Zero(t, b.TravelTime)
	assert.Zero(t, b.TrafficPenalty)
	assert.Positive(t, b.Emissions)
	assert.GreaterOrEqual(t, b.Total(), 0.0)
	assert.LessOrEqual(t, -b.Total(), 0.0)
}

func TestCost_EmissionsDependOnVehicleOnly(t *testing.T) {
	route := &routing.Route{DistanceMeters: 5000, DurationSeconds: 420}
	s := sample(30, 50, 200)

	bus, _ := cost.Cost(vehicle.Bus, s, route)
	car, _ := cost.Cost(vehicle.LargeCar, s, route)

	assert.Equal(t, bus.TravelTime, car.TravelTime)
	assert.Equal(t, bus.TrafficPenalty, car.TrafficPenalty)
	assert.Less(t, bus.Emissions, car.Emissions)
}

func TestModel_Evaluate(t *testing.T) {
	model := cost.NewModel(cost.ModelConfig{
		Traffic: fake.NewTraffic(25, 50, 600),
		Routing: fake.NewRouting(12000, 1500),
		Logger:  zerolog.Nop(),
	})

	b, ok := model.Evaluate(context.Background(), scenario, vehicle.Motorcycle)

	require.True(t, ok)
	assert.Equal(t, 600.0, b.TravelTime)
	assert.Equal(t, 25.0, b.TrafficPenalty)
	assert.InDelta(t, 1.2, b.Emissions, 1e-12)
}

func TestModel_Record(t *testing.T) {
	model := cost.NewModel(cost.ModelConfig{
		Traffic: fake.NewTraffic(25, 50, 600),
		Routing: fake.NewRouting(12000, 1500),
		Logger:  zerolog.Nop(),
	})

	rec := model.Record(context.Background(), scenario, vehicle.Train)

	require.NotNil(t, rec)
	assert.Equal(t, vehicle.Train, rec.Vehicle)
	assert.Equal(t, 12000.0, rec.Route.DistanceMeters)
	assert.Equal(t, 25.0, *rec.Traffic.CurrentSpeed)
}

func TestModel_TrafficUnavailableSkipsRouting(t *testing.T) {
	tr := fake.NewTraffic(25, 50, 600)
	tr.Set(provider.TransportError[traffic.Sample](errors.New("timeout")))
	rt := fake.NewRouting(12000, 1500)
	model := cost.NewModel(cost.ModelConfig{Traffic: tr, Routing: rt, Logger: zerolog.Nop()})

	_, ok := model.Evaluate(context.Background(), scenario, vehicle.SmallCar)

	assert.False(t, ok)
	assert.Equal(t, int32(0), rt.Calls.Load())
}

func TestModel_IncompleteSampleIsInvalid(t *testing.T) {
	tr := fake.NewTraffic(25, 50, 600)
	tr.Set(provider.Ok(traffic.Sample{CurrentSpeed: traffic.Float(10)}))
	model := cost.NewModel(cost.ModelConfig{Traffic: tr, Routing: fake.NewRouting(1, 1), Logger: zerolog.Nop()})

	assert.Nil(t, model.Record(context.Background(), scenario, vehicle.SmallCar))
}

func TestModel_RouteAbsentIsInvalid(t *testing.T) {
	rt := fake.NewRouting(12000, 1500)
	rt.Set(provider.Absent[routing.Route]("NoRoute"))
	model := cost.NewModel(cost.ModelConfig{Traffic: fake.NewTraffic(25, 50, 600), Routing: rt, Logger: zerolog.Nop()})

	_, ok := model.Evaluate(context.Background(), scenario, vehicle.SmallCar)

	assert.False(t, ok)
}

// Package emissions estimates CO2-proxy emissions for a route distance.
package emissions

import "github.com/ecoroute/ecoroute/internal/vehicle"

// Factors maps a vehicle name to its emission factor per kilometre.
// Flight entries are outside the vehicle enumeration and only matter to callers
// that score arbitrary names.
var Factors = map[string]float64{
	string(vehicle.SmallCar):    0.12,
	string(vehicle.LargeCar):    0.21,
	string(vehicle.ElectricCar): 0.05,
	string(vehicle.Bus):         0.05,
	string(vehicle.Train):       0.04,
	string(vehicle.Motorcycle):  0.10,
	"domestic_flight":           0.25,
	"international_flight":      0.15,
}

// DefaultFactor applies to names missing from Factors. It equals the small car factor.
const DefaultFactor = 0.12

// Factor returns the emission factor for t.
func Factor(t vehicle.Type) float64 {
	if f, ok := Factors[string(t)]; ok {
		return f
	}
	return DefaultFactor
}

// Estimate returns distanceMeters * Factor(t) / 1000.
func Estimate(distanceMeters float64, t vehicle.Type) float64 {
	return distanceMeters * Factor(t) / 1000
}

// Package vehicle defines the vehicle types a candidate route can be scored for.
package vehicle

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrUnknownType is returned when parsing a name outside the enumeration.
var ErrUnknownType = errors.New("unknown vehicle type")

// Type is a vehicle type hypothesis. The declaration order is the one-hot offset.
type Type string

const (
	SmallCar    Type = "small_car"
	LargeCar    Type = "large_car"
	ElectricCar Type = "electric_car"
	Bus         Type = "bus"
	Motorcycle  Type = "motorcycle"
	Train       Type = "train"
)

var all = []Type{SmallCar, LargeCar, ElectricCar, Bus, Motorcycle, Train}

// Count is the size of the enumeration.
var Count = len(all)

// All returns the enumeration in one-hot order.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

// Index returns the enumeration position of t, or -1 if t is not a member.
func (t Type) Index() int {
	for i, v := range all {
		if v == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a member of the enumeration.
func (t Type) Valid() bool {
	return t.Index() >= 0
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// Parse converts a name to a Type.
func Parse(name string) (Type, error) {
	t := Type(name)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// OneHot returns a vector of length Count with a single 1 at t's index.
// An unknown type yields the all-zero vector.
func OneHot(t Type) []float64 {
	v := make([]float64, len(all))
	if i := t.Index(); i >= 0 {
		v[i] = 1
	}
	return v
}

// Random picks a type uniformly from the enumeration.
func Random(rng *rand.Rand) Type {
	return all[rng.Intn(len(all))]
}

// Package agent trains and evaluates route selection policies against an
// environment.Environment.
package agent

import (
	"math/rand"

	"github.com/ecoroute/ecoroute/internal/encoder"
)

// Policy maps an observation to an action index.
type Policy interface {
	Predict(obs encoder.Observation) int
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(obs encoder.Observation) int

// Predict implements Policy.
func (f PolicyFunc) Predict(obs encoder.Observation) int {
	return f(obs)
}

// RandomPolicy picks uniformly among n actions. Used as an evaluation baseline.
type RandomPolicy struct {
	n   int
	rng *rand.Rand
}

// NewRandomPolicy creates a uniform policy over n actions.
func NewRandomPolicy(n int, rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{n: n, rng: rng}
}

// Predict implements Policy.
func (p *RandomPolicy) Predict(encoder.Observation) int {
	return p.rng.Intn(p.n)
}

// Package environment implements the route selection decision process: a
// scenario is sampled on reset, three candidate routes are built, and each
// step scores the chosen candidate.
package environment

import (
	"context"
	"errors"

	"github.com/ecoroute/ecoroute/internal/catalog"
	"github.com/ecoroute/ecoroute/internal/encoder"
)

// Sentinel errors for environment operations.
var (
	// ErrInvalidAction is returned when an action is outside [0, N).
	ErrInvalidAction = errors.New("invalid action")
	// ErrNotReady is returned when Step is called before any Reset.
	ErrNotReady = errors.New("environment not reset")
)

// State is the lifecycle state of an environment.
type State int

const (
	// StateUninitialized means no episode has been started.
	StateUninitialized State = iota
	// StateReady means an episode is in progress.
	StateReady
	// StateTerminal means the last step ended the episode.
	StateTerminal
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ActionSpec describes the discrete action space.
type ActionSpec struct {
	N int
}

// Contains reports whether action is a valid index.
func (a ActionSpec) Contains(action int) bool {
	return action >= 0 && action < a.N
}

// ObservationSpec describes the observation vector.
type ObservationSpec struct {
	Length int
	Low    float64 // every feature is >= Low
}

// DefaultActionSpec is the action space of every environment in this package.
func DefaultActionSpec() ActionSpec {
	return ActionSpec{N: catalog.Size}
}

// DefaultObservationSpec is the observation space of every environment in this package.
func DefaultObservationSpec() ObservationSpec {
	return ObservationSpec{Length: encoder.Length, Low: 0}
}

// AbsentKey is set in StepResult.Info when the chosen route had no usable
// provider data and the episode ended with zero reward.
const AbsentKey = "absent"

// StepResult is the outcome of a single step.
type StepResult struct {
	Observation encoder.Observation
	Reward      float64
	Terminal    bool
	Info        map[string]any
}

// Environment is the contract any agent trains and evaluates against.
type Environment interface {
	Reset(ctx context.Context) (encoder.Observation, error)
	Step(ctx context.Context, action int) (StepResult, error)
	ActionSpec() ActionSpec
	ObservationSpec() ObservationSpec
}

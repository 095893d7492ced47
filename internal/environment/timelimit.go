package environment

import (
	"context"

	"github.com/ecoroute/ecoroute/internal/encoder"
)

// TruncatedKey is set in StepResult.Info when TimeLimit ends an episode.
const TruncatedKey = "truncated"

// TimeLimit ends episodes after a fixed number of steps. Scenario endpoints
// never change within an episode, so an episode whose endpoints are apart
// would otherwise only end on missing data.
type TimeLimit struct {
	env      Environment
	maxSteps int
	steps    int
}

var _ Environment = (*TimeLimit)(nil)

// WithTimeLimit wraps env. maxSteps below 1 is treated as 1.
func WithTimeLimit(env Environment, maxSteps int) *TimeLimit {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &TimeLimit{env: env, maxSteps: maxSteps}
}

// Reset implements Environment.
func (t *TimeLimit) Reset(ctx context.Context) (encoder.Observation, error) {
	t.steps = 0
	return t.env.Reset(ctx)
}

// Step implements Environment.
func (t *TimeLimit) Step(ctx context.Context, action int) (StepResult, error) {
	res, err := t.env.Step(ctx, action)
	if err != nil {
		return res, err
	}
	t.steps++
	if !res.Terminal && t.steps >= t.maxSteps {
		res.Terminal = true
		if res.Info == nil {
			res.Info = map[string]any{}
		}
		res.Info[TruncatedKey] = true
	}
	return res, nil
}

// ActionSpec implements Environment.
func (t *TimeLimit) ActionSpec() ActionSpec {
	return t.env.ActionSpec()
}

// ObservationSpec implements Environment.
func (t *TimeLimit) ObservationSpec() ObservationSpec {
	return t.env.ObservationSpec()
}

// Unwrap returns the wrapped environment.
func (t *TimeLimit) Unwrap() Environment {
	return t.env
}

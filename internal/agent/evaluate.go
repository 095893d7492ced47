package agent

import (
	"context"
	"fmt"

	"github.com/ecoroute/ecoroute/internal/environment"
)

// EvaluationResult summarises greedy evaluation episodes.
type EvaluationResult struct {
	Episodes    int
	Steps       int
	TotalReward float64
	Rewards     []float64
}

// MeanReward returns the mean episode reward, or 0 with no episodes.
func (r EvaluationResult) MeanReward() float64 {
	if r.Episodes == 0 {
		return 0
	}
	return r.TotalReward / float64(r.Episodes)
}

// Evaluate runs the policy for the given number of episodes, each until
// terminal or maxSteps steps (DefaultMaxEpisodeSteps when maxSteps < 1).
func Evaluate(ctx context.Context, env environment.Environment, policy Policy, episodes, maxSteps int) (EvaluationResult, error) {
	if maxSteps < 1 {
		maxSteps = DefaultMaxEpisodeSteps
	}
	limited := environment.WithTimeLimit(env, maxSteps)
	result := EvaluationResult{Rewards: make([]float64, 0, episodes)}

	for ep := 0; ep < episodes; ep++ {
		obs, err := limited.Reset(ctx)
		if err != nil {
			return result, fmt.Errorf("episode %d: resetting environment: %w", ep, err)
		}

		var total float64
		for {
			res, err := limited.Step(ctx, policy.Predict(obs))
			if err != nil {
				return result, fmt.Errorf("episode %d: %w", ep, err)
			}
			result.Steps++
			total += res.Reward
			obs = res.Observation
			if res.Terminal {
				break
			}
		}

		result.Episodes++
		result.TotalReward += total
		result.Rewards = append(result.Rewards, total)
	}

	return result, nil
}

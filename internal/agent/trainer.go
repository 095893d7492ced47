package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/ecoroute/ecoroute/internal/environment"
)

// DefaultMaxEpisodeSteps bounds episodes whose scenario endpoints are apart.
const DefaultMaxEpisodeSteps = 5

// EpisodeStats summarises one finished episode.
type EpisodeStats struct {
	Episode   int
	Steps     int
	Reward    float64
	Truncated bool // ended by the step limit
	Absent    bool // ended because provider data was missing
}

// TrainingStats summarises a training run.
type TrainingStats struct {
	Timesteps      int
	Episodes       []EpisodeStats
	AbsentEpisodes int
	Duration       time.Duration
}

// Rewards returns the per-episode rewards in order.
func (s TrainingStats) Rewards() []float64 {
	out := make([]float64, len(s.Episodes))
	for i, e := range s.Episodes {
		out[i] = e.Reward
	}
	return out
}

// MeanReward returns the mean episode reward, or 0 with no episodes.
func (s TrainingStats) MeanReward() float64 {
	if len(s.Episodes) == 0 {
		return 0
	}
	return stat.Mean(s.Rewards(), nil)
}

// TrainerConfig holds configuration for the trainer.
type TrainerConfig struct {
	// Agent is the learner (required).
	Agent *LinearQ

	// MaxEpisodeSteps truncates long episodes (default: DefaultMaxEpisodeSteps).
	MaxEpisodeSteps int

	// LogEvery logs progress every n episodes (default: 50).
	LogEvery int

	// OnEpisode is called after every finished episode (optional).
	OnEpisode func(EpisodeStats)

	// Logger for training progress.
	Logger zerolog.Logger
}

// Trainer runs the interaction loop between an agent and an environment.
type Trainer struct {
	agent     *LinearQ
	maxSteps  int
	logEvery  int
	onEpisode func(EpisodeStats)
	logger    zerolog.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(cfg TrainerConfig) *Trainer {
	maxSteps := cfg.MaxEpisodeSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxEpisodeSteps
	}
	logEvery := cfg.LogEvery
	if logEvery == 0 {
		logEvery = 50
	}
	return &Trainer{
		agent:     cfg.Agent,
		maxSteps:  maxSteps,
		logEvery:  logEvery,
		onEpisode: cfg.OnEpisode,
		logger:    cfg.Logger,
	}
}

// Train interacts with env for the given number of timesteps. Episodes that
// end on missing provider data count as zero-reward episodes; they never abort
// the run. Only context cancellation and contract violations return an error.
func (t *Trainer) Train(ctx context.Context, env environment.Environment, timesteps int) (TrainingStats, error) {
	started := time.Now()
	limited := environment.WithTimeLimit(env, t.maxSteps)
	stats := TrainingStats{}

	obs, err := limited.Reset(ctx)
	if err != nil {
		return stats, fmt.Errorf("resetting environment: %w", err)
	}

	current := EpisodeStats{Episode: 1}

	for step := 0; step < timesteps; step++ {
		action := t.agent.Act(obs, step)

		res, err := limited.Step(ctx, action)
		if err != nil {
			return stats, fmt.Errorf("step %d: %w", step, err)
		}
		stats.Timesteps++

		if step >= t.agent.hp.LearningStarts {
			t.agent.Observe(Transition{
				Obs:      obs,
				Action:   action,
				Reward:   res.Reward,
				Next:     res.Observation,
				Terminal: res.Terminal && res.Info[environment.TruncatedKey] == nil,
			})
		}

		current.Steps++
		current.Reward += res.Reward
		obs = res.Observation

		if !res.Terminal {
			continue
		}

		current.Truncated = res.Info[environment.TruncatedKey] == true
		current.Absent = res.Info[environment.AbsentKey] == true
		if current.Absent {
			stats.AbsentEpisodes++
		}
		stats.Episodes = append(stats.Episodes, current)
		if t.onEpisode != nil {
			t.onEpisode(current)
		}
		if current.Episode%t.logEvery == 0 {
			t.logger.Info().
				Int("episode", current.Episode).
				Int("timestep", step+1).
				Float64("epsilon", t.agent.Epsilon(step)).
				Float64("mean_reward", stats.MeanReward()).
				Int("absent_episodes", stats.AbsentEpisodes).
				Msg("training progress")
		}

		if step+1 == timesteps {
			break
		}
		obs, err = limited.Reset(ctx)
		if err != nil {
			return stats, fmt.Errorf("resetting environment: %w", err)
		}
		current = EpisodeStats{Episode: current.Episode + 1}
	}

	stats.Duration = time.Since(started)
	t.logger.Info().
		Int("timesteps", stats.Timesteps).
		Int("episodes", len(stats.Episodes)).
		Int("updates", t.agent.Updates()).
		Float64("mean_reward", stats.MeanReward()).
		Dur("duration", stats.Duration).
		Msg("training finished")

	return stats, nil
}

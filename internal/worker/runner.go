package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/environment"
	"github.com/ecoroute/ecoroute/internal/modelstore"
)

// EnvFactory builds a fresh environment whose randomness is seeded by seed.
type EnvFactory func(seed int64) (*environment.Env, error)

// RunnerConfig holds the collaborators of a Runner.
type RunnerConfig struct {
	// NewEnv builds environments (required).
	NewEnv EnvFactory

	// Store persists trained policies (required for train and evaluate).
	Store modelstore.Repository

	// Hyperparameters for new agents (default: agent.DefaultHyperparameters).
	Hyperparameters *agent.Hyperparameters

	// MaxEpisodeSteps truncates training and evaluation episodes.
	MaxEpisodeSteps int

	Probe ProbeConfig

	// OnEpisode is forwarded to the trainer (optional).
	OnEpisode func(agent.EpisodeStats)

	Logger zerolog.Logger
}

// Runner executes jobs.
type Runner struct {
	cfg    RunnerConfig
	hp     agent.Hyperparameters
	probe  ProbeConfig
	logger zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	hp := agent.DefaultHyperparameters()
	if cfg.Hyperparameters != nil {
		hp = *cfg.Hyperparameters
	}
	return &Runner{
		cfg:    cfg,
		hp:     hp,
		probe:  cfg.Probe.withDefaults(),
		logger: cfg.Logger,
	}
}

// TrainResult is the outcome of a training job.
type TrainResult struct {
	Stats     agent.TrainingStats
	ModelName string
	BlobSize  int
}

// Train trains a fresh agent for job.Timesteps steps, decaying exploration
// over that horizon, and saves it under job.ModelName.
func (r *Runner) Train(ctx context.Context, job Job) (TrainResult, error) {
	env, err := r.cfg.NewEnv(job.Seed)
	if err != nil {
		return TrainResult{}, fmt.Errorf("building environment: %w", err)
	}

	hp := r.hp
	hp.TotalTimesteps = job.Timesteps
	q := agent.NewLinearQ(env.ObservationSpec(), env.ActionSpec(), hp, rand.New(rand.NewSource(job.Seed))) //nolint:gosec // reproducible exploration
	trainer := agent.NewTrainer(agent.TrainerConfig{
		Agent:           q,
		MaxEpisodeSteps: r.cfg.MaxEpisodeSteps,
		OnEpisode:       r.cfg.OnEpisode,
		Logger:          r.logger,
	})

	stats, err := trainer.Train(ctx, env, job.Timesteps)
	if err != nil {
		return TrainResult{Stats: stats}, fmt.Errorf("training: %w", err)
	}

	blob, err := q.MarshalBinary()
	if err != nil {
		return TrainResult{Stats: stats}, fmt.Errorf("encoding policy: %w", err)
	}
	if err := r.cfg.Store.Save(ctx, job.ModelName, blob); err != nil {
		return TrainResult{Stats: stats}, fmt.Errorf("saving policy %q: %w", job.ModelName, err)
	}

	r.logger.Info().
		Str("model", job.ModelName).
		Int("timesteps", stats.Timesteps).
		Int("episodes", len(stats.Episodes)).
		Int("absent_episodes", stats.AbsentEpisodes).
		Float64("mean_reward", stats.MeanReward()).
		Dur("duration", stats.Duration).
		Msg("policy trained")

	return TrainResult{Stats: stats, ModelName: job.ModelName, BlobSize: len(blob)}, nil
}

// Evaluate runs greedy episodes with the stored policy job.ModelName.
func (r *Runner) Evaluate(ctx context.Context, job Job) (agent.EvaluationResult, error) {
	blob, err := r.cfg.Store.Load(ctx, job.ModelName)
	if err != nil {
		return agent.EvaluationResult{}, fmt.Errorf("loading policy %q: %w", job.ModelName, err)
	}

	env, err := r.cfg.NewEnv(job.Seed)
	if err != nil {
		return agent.EvaluationResult{}, fmt.Errorf("building environment: %w", err)
	}

	q, err := agent.LoadLinearQ(blob, env.ObservationSpec(), env.ActionSpec(), nil)
	if err != nil {
		return agent.EvaluationResult{}, fmt.Errorf("decoding policy %q: %w", job.ModelName, err)
	}

	result, err := agent.Evaluate(ctx, env, q, job.Episodes, r.cfg.MaxEpisodeSteps)
	if err != nil {
		return result, err
	}

	r.logger.Info().
		Str("model", job.ModelName).
		Int("episodes", result.Episodes).
		Float64("total_reward", result.TotalReward).
		Float64("mean_reward", result.MeanReward()).
		Msg("policy evaluated")

	return result, nil
}

// Run executes job and returns an error if it failed.
func (r *Runner) Run(ctx context.Context, job Job) error {
	started := time.Now()
	var err error

	switch job.JobType {
	case JobTrain:
		_, err = r.Train(ctx, job)
	case JobEvaluate:
		_, err = r.Evaluate(ctx, job)
	case JobHealthCheck:
		err = r.Probe(ctx, job.Seed).Err()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJobType, job.JobType)
	}

	r.logger.Debug().
		Str("job_type", string(job.JobType)).
		Dur("duration", time.Since(started)).
		Err(err).
		Msg("job finished")
	return err
}

package worker_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/environment"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/provider"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/routing"
	"github.com/ecoroute/ecoroute/internal/worker"
)

func envFactory(rt *fake.Routing) worker.EnvFactory {
	return func(seed int64) (*environment.Env, error) {
		return environment.New(environment.Config{
			Traffic:    fake.NewTraffic(25, 50, 900),
			Routing:    rt,
			AirQuality: fake.NewAirQuality(140),
			Rand:       rand.New(rand.NewSource(seed)),
			Logger:     zerolog.Nop(),
		})
	}
}

func newRunner(store modelstore.Repository, rt *fake.Routing) *worker.Runner {
	hp := agent.DefaultHyperparameters()
	hp.LearningStarts = 10
	hp.TotalTimesteps = 60
	return worker.NewRunner(worker.RunnerConfig{
		NewEnv:          envFactory(rt),
		Store:           store,
		Hyperparameters: &hp,
		MaxEpisodeSteps: 3,
		Probe:           worker.ProbeConfig{Scenarios: 4, Concurrency: 2},
		Logger:          zerolog.Nop(),
	})
}

func TestParseJob(t *testing.T) {
	job, err := worker.ParseJob([]byte(`{"job_type":"train"}`))
	require.NoError(t, err)
	assert.Equal(t, worker.JobTrain, job.JobType)
	assert.Equal(t, worker.DefaultModelName, job.ModelName)
	assert.Equal(t, worker.DefaultTimesteps, job.Timesteps)
	assert.Equal(t, worker.DefaultEpisodes, job.Episodes)

	job, err = worker.ParseJob([]byte(`{"job_type":"evaluate","model_name":"nightly","episodes":3,"seed":9}`))
	require.NoError(t, err)
	assert.Equal(t, "nightly", job.ModelName)
	assert.Equal(t, 3, job.Episodes)
	assert.Equal(t, int64(9), job.Seed)
}

func TestParseJob_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed", `{"job_type":`, worker.ErrInvalidJob},
		{"unknown type", `{"job_type":"provider_refresh"}`, worker.ErrUnknownJobType},
		{"missing type", `{}`, worker.ErrUnknownJobType},
		{"negative timesteps", `{"job_type":"train","timesteps":-1}`, worker.ErrInvalidJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := worker.ParseJob([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunner_TrainThenEvaluate(t *testing.T) {
	store := modelstore.NewMemoryRepository()
	runner := newRunner(store, fake.NewRouting(12000, 1500))
	ctx := context.Background()

	res, err := runner.Train(ctx, worker.Job{JobType: worker.JobTrain, ModelName: "nightly", Timesteps: 60, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "nightly", res.ModelName)
	assert.Equal(t, 60, res.Stats.Timesteps)
	assert.NotEmpty(t, res.Stats.Episodes)
	assert.Positive(t, res.BlobSize)

	blob, err := store.Load(ctx, "nightly")
	require.NoError(t, err)
	assert.Len(t, blob, res.BlobSize)

	eval, err := runner.Evaluate(ctx, worker.Job{JobType: worker.JobEvaluate, ModelName: "nightly", Episodes: 4, Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, eval.Episodes)
	assert.Len(t, eval.Rewards, 4)
	assert.Negative(t, eval.MeanReward())
}

func TestRunner_EvaluateMissingModel(t *testing.T) {
	runner := newRunner(modelstore.NewMemoryRepository(), fake.NewRouting(12000, 1500))

	_, err := runner.Evaluate(context.Background(), worker.Job{JobType: worker.JobEvaluate, ModelName: "missing", Episodes: 1})
	assert.ErrorIs(t, err, modelstore.ErrNotFound)
}

func TestRunner_ProbeHealthy(t *testing.T) {
	runner := newRunner(modelstore.NewMemoryRepository(), fake.NewRouting(12000, 1500))

	result := runner.Probe(context.Background(), 1)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Successful)
	assert.Zero(t, result.Failed)
	assert.NoError(t, result.Err())
}

func TestRunner_ProbeWithoutRouteData(t *testing.T) {
	rt := fake.NewRouting(12000, 1500)
	rt.Set(provider.TransportError[routing.Route](errors.New("osrm down")))
	runner := newRunner(modelstore.NewMemoryRepository(), rt)

	result := runner.Probe(context.Background(), 1)

	assert.Equal(t, 4, result.Failed)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, "no candidate route has data", result.Errors[0].Error)
	assert.Error(t, result.Err())
}

type recordingRunner struct {
	jobs []worker.Job
	err  error
}

func (r *recordingRunner) Run(_ context.Context, job worker.Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func TestHandle_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		runErr  error
		outcome worker.Outcome
		ran     bool
	}{
		{"success", `{"job_type":"health_check"}`, nil, worker.Ack, true},
		{"job failure", `{"job_type":"train"}`, errors.New("store down"), worker.Nack, true},
		{"unknown type", `{"job_type":"provider_refresh"}`, nil, worker.Ack, false},
		{"malformed", `not json`, nil, worker.Nack, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &recordingRunner{err: tt.runErr}

			outcome := worker.Handle(context.Background(), runner, []byte(tt.data), zerolog.Nop())

			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.ran, len(runner.jobs) == 1)
		})
	}
}

func TestHandle_RunsTrainingJob(t *testing.T) {
	store := modelstore.NewMemoryRepository()
	runner := newRunner(store, fake.NewRouting(12000, 1500))

	outcome := worker.Handle(context.Background(), runner,
		[]byte(`{"job_type":"train","model_name":"from-pubsub","timesteps":30,"seed":3}`), zerolog.Nop())

	assert.Equal(t, worker.Ack, outcome)
	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "from-pubsub", artifacts[0].Name)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}

// Package worker runs training, evaluation and provider health jobs, driven
// by Pub/Sub messages or called directly from the trainer CLI.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JobType names a worker job.
type JobType string

// Job types.
const (
	JobTrain       JobType = "train"
	JobEvaluate    JobType = "evaluate"
	JobHealthCheck JobType = "health_check"
)

// Defaults applied by ParseJob.
const (
	DefaultModelName = "route-policy"
	DefaultTimesteps = 10000
	DefaultEpisodes  = 10
)

// Sentinel errors for job messages.
var (
	// ErrUnknownJobType is returned for a well-formed message naming no known job.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrInvalidJob is returned for malformed or out-of-range job messages.
	ErrInvalidJob = errors.New("invalid job")
)

// Job is the Pub/Sub message body.
type Job struct {
	JobType   JobType `json:"job_type"`
	ModelName string  `json:"model_name,omitempty"`
	Timesteps int     `json:"timesteps,omitempty"`
	Episodes  int     `json:"episodes,omitempty"`
	Seed      int64   `json:"seed,omitempty"`
}

// ParseJob decodes a job message and fills in defaults.
func ParseJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	switch job.JobType {
	case JobTrain, JobEvaluate, JobHealthCheck:
	default:
		return job, fmt.Errorf("%w: %q", ErrUnknownJobType, job.JobType)
	}

	if job.Timesteps < 0 || job.Episodes < 0 {
		return job, fmt.Errorf("%w: timesteps and episodes must not be negative", ErrInvalidJob)
	}
	if job.ModelName == "" {
		job.ModelName = DefaultModelName
	}
	if job.Timesteps == 0 {
		job.Timesteps = DefaultTimesteps
	}
	if job.Episodes == 0 {
		job.Episodes = DefaultEpisodes
	}
	return job, nil
}

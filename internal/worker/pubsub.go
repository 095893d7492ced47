package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Outcome tells the subscriber what to do with a message.
type Outcome int

// Outcomes.
const (
	Ack Outcome = iota
	Nack
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

// JobRunner executes a parsed job.
type JobRunner interface {
	Run(ctx context.Context, job Job) error
}

// Handle parses and runs one message. Unknown job types are acked so they
// are not redelivered; undecodable messages and failed jobs are nacked.
func Handle(ctx context.Context, runner JobRunner, data []byte, logger zerolog.Logger) Outcome {
	job, err := ParseJob(data)
	switch {
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Str("job_type", string(job.JobType)).Msg("unknown job type")
		return Ack
	case err != nil:
		logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	started := time.Now()
	if err := runner.Run(ctx, job); err != nil {
		logger.Error().
			Err(err).
			Str("job_type", string(job.JobType)).
			Str("model", job.ModelName).
			Msg("job failed")
		return Nack
	}

	logger.Info().
		Str("job_type", string(job.JobType)).
		Str("model", job.ModelName).
		Dur("duration", time.Since(started)).
		Msg("job completed successfully")
	return Ack
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           JobRunner

	// MaxOutstandingMessages bounds concurrent jobs (default: 1, training
	// is CPU bound).
	MaxOutstandingMessages int

	Logger zerolog.Logger
}

// PubSubHandler receives job messages from a subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           JobRunner
	logger           zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.ProjectID == "" || cfg.SubscriptionName == "" {
		return nil, errors.New("pubsub project and subscription are required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstandingMessages
	if maxOutstanding <= 0 {
		maxOutstanding = 1
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	// Training runs can take a while; keep extending the ack deadline.
	subscriber.ReceiveSettings.MaxExtension = time.Hour

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if Handle(ctx, h.runner, msg.Data, logger) == Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/infra/metrics"
	"portfolio-advisor/internal/infra/worker"
)

type jobReader interface {
	Get(ctx context.Context, id string) (*model.AdvisoryJob, error)
}

type taskSubmitter interface {
	Submit(task worker.Task) error
}

// JobConsumer receives job messages from the queue group and runs each job
// on the local worker pool.
type JobConsumer struct {
	jobs   jobReader
	runner adapter.JobRunner
	pool   taskSubmitter
	log    *zerolog.Logger
	sub    *nats.Subscription
}

func NewJobConsumer(jobs jobReader, runner adapter.JobRunner, pool taskSubmitter, log *zerolog.Logger) *JobConsumer {
	return &JobConsumer{jobs: jobs, runner: runner, pool: pool, log: log}
}

func (c *JobConsumer) Subscribe(client *Client, subject, queue string) error {
	sub, err := client.QueueSubscribeJSON(subject, queue, c.handle)
	if err != nil {
		return err
	}
	c.sub = sub
	c.log.Info().Str("subject", subject).Str("queue", queue).Msg("job consumer subscribed")
	return nil
}

func (c *JobConsumer) Unsubscribe() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
}

func (c *JobConsumer) handle(ctx context.Context, data []byte) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.JobID == "" {
		c.log.Warn().Err(err).Bytes("payload", data).Msg("dropping malformed job message")
		return
	}
	log := c.log.With().Str("job_id", msg.JobID).Logger()

	job, err := c.jobs.Get(ctx, msg.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("job message for unknown job")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load job")
		return
	}
	// redelivery after the job already finished
	if job.IsTerminal() {
		log.Debug().Str("status", string(job.Status)).Msg("job already final, skipping")
		return
	}

	if err := c.pool.Submit(func(ctx context.Context) error {
		return c.runner.Run(ctx, job)
	}); err != nil {
		metrics.IncDispatchFailure("nats")
		log.Error().Err(err).Msg("local pool rejected job")
	}
}

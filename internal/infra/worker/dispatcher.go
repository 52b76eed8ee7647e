package worker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/infra/metrics"
)

var _ adapter.JobDispatcher = (*PoolDispatcher)(nil)

// PoolDispatcher runs jobs in-process on the worker pool. The run uses the
// pool's context, never the caller's request context.
type PoolDispatcher struct {
	pool   *Pool
	runner adapter.JobRunner
	log    *zerolog.Logger
}

func NewPoolDispatcher(pool *Pool, runner adapter.JobRunner, log *zerolog.Logger) *PoolDispatcher {
	return &PoolDispatcher{pool: pool, runner: runner, log: log}
}

func (d *PoolDispatcher) Dispatch(_ context.Context, job *model.AdvisoryJob) error {
	err := d.pool.Submit(func(ctx context.Context) error {
		return d.runner.Run(ctx, job)
	})
	if err != nil {
		metrics.IncDispatchFailure("pool")
		d.log.Warn().Err(err).Str("job_id", job.ID).Int("queued", d.pool.Queued()).Msg("dispatch rejected")
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	return nil
}

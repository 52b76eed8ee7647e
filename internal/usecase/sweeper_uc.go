package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
	"portfolio-advisor/internal/infra/metrics"
)

// AbandonedMessage is the error stored on jobs failed by the sweeper.
const AbandonedMessage = "job abandoned: processing did not complete"

type SweepResult struct {
	Failed  int
	Deleted int64
}

// JobSweeper reconciles jobs stuck in PROCESSING (lost dispatch, crashed
// worker) and reclaims expired records.
type JobSweeper struct {
	jobs       repository.AdvisoryJobRepository
	staleAfter time.Duration
	batch      int
	now        func() time.Time
	log        *zerolog.Logger
}

func NewJobSweeper(jobs repository.AdvisoryJobRepository, staleAfter time.Duration, batch int, log *zerolog.Logger) *JobSweeper {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := log.With().Str("component", "job_sweeper").Logger()
	return &JobSweeper{jobs: jobs, staleAfter: staleAfter, batch: batch, now: time.Now, log: &l}
}

func (s *JobSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()

	stale, err := s.jobs.ListStaleProcessing(ctx, now.Add(-s.staleAfter), s.batch)
	if err != nil {
		return res, fmt.Errorf("list stale jobs: %w", err)
	}
	for _, j := range stale {
		err := s.jobs.Finalize(ctx, j.ID, model.FailedOutcome(AbandonedMessage, now))
		switch {
		case err == nil:
			res.Failed++
			s.log.Warn().Str("job_id", j.ID).Time("created_at", j.CreatedAt).Msg("stale job marked FAILED")
		case errors.Is(err, domain.ErrJobAlreadyFinal), errors.Is(err, domain.ErrNotFound):
			// finished or reclaimed concurrently
		default:
			return res, fmt.Errorf("fail stale job %s: %w", j.ID, err)
		}
	}
	metrics.AddJobsSwept(res.Failed)

	deleted, err := s.jobs.DeleteExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("delete expired jobs: %w", err)
	}
	res.Deleted = deleted
	return res, nil
}

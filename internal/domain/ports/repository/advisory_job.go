package repository

import (
	"context"
	"time"

	"portfolio-advisor/internal/domain/model"
)

// AdvisoryJobRepository owns the lifecycle of advisory job records.
type AdvisoryJobRepository interface {
	// Create stores a new job. The id must not exist yet.
	Create(ctx context.Context, job *model.AdvisoryJob) error
	// Get returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.AdvisoryJob, error)
	// Finalize writes the terminal fields only while the stored job is still
	// PROCESSING. Returns domain.ErrJobAlreadyFinal otherwise and
	// domain.ErrNotFound when the job does not exist.
	Finalize(ctx context.Context, id string, out model.JobOutcome) error
	// ListStaleProcessing returns PROCESSING jobs created before the cutoff, oldest first.
	ListStaleProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.AdvisoryJob, error)
	// DeleteExpired reclaims records whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

package adapter

import (
	"context"

	"portfolio-advisor/internal/domain/model"
)

// JobDispatcher hands a created job to asynchronous processing. It must not
// wait for the run to finish.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *model.AdvisoryJob) error
}

// JobRunner drives one job to its terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *model.AdvisoryJob) error
}

package bus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/infra/metrics"
)

var _ adapter.JobDispatcher = (*NATSDispatcher)(nil)

// JobMessage is the payload published for every submitted job. Workers
// load the job itself from the shared store.
type JobMessage struct {
	JobID string `json:"jobId"`
}

type publisher interface {
	PublishJSON(subject string, v any) error
}

type NATSDispatcher struct {
	pub     publisher
	subject string
	log     *zerolog.Logger
}

func NewNATSDispatcher(pub publisher, subject string, log *zerolog.Logger) *NATSDispatcher {
	return &NATSDispatcher{pub: pub, subject: subject, log: log}
}

func (d *NATSDispatcher) Dispatch(_ context.Context, job *model.AdvisoryJob) error {
	if err := d.pub.PublishJSON(d.subject, JobMessage{JobID: job.ID}); err != nil {
		metrics.IncDispatchFailure("nats")
		d.log.Warn().Err(err).Str("job_id", job.ID).Str("subject", d.subject).Msg("publish failed")
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	return nil
}

// File: internal/usecase/advisory_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/domain/ports/repository"
	"portfolio-advisor/internal/infra/logging"
	"portfolio-advisor/internal/infra/metrics"
)

// Compile-time check
var _ AdvisoryUseCase = (*advisoryUC)(nil)

// AdvisoryUseCase is the client-facing surface: submit a question, poll the job.
type AdvisoryUseCase interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Get(ctx context.Context, jobID string) (*model.AdvisoryJob, error)
}

type SubmitRequest struct {
	UserID    string
	Prompt    string
	Prompts   []string
	Responses []string
}

type SubmitResult struct {
	JobID  string
	Status model.AdvisoryJobStatus
}

// SubmitLimiter throttles submissions per user.
type SubmitLimiter interface {
	AllowSubmit(ctx context.Context, userID string) (bool, error)
}

type AdvisoryOption func(*advisoryUC)

func WithIDGenerator(fn func() string) AdvisoryOption {
	return func(u *advisoryUC) {
		if fn != nil {
			u.newID = fn
		}
	}
}

func WithJobTTL(ttl time.Duration) AdvisoryOption {
	return func(u *advisoryUC) {
		if ttl > 0 {
			u.ttl = ttl
		}
	}
}

func WithMaxPromptChars(n int) AdvisoryOption {
	return func(u *advisoryUC) {
		if n > 0 {
			u.maxPromptChars = n
		}
	}
}

func WithSubmitLimiter(l SubmitLimiter) AdvisoryOption {
	return func(u *advisoryUC) { u.limiter = l }
}

func WithSubmitClock(now func() time.Time) AdvisoryOption {
	return func(u *advisoryUC) {
		if now != nil {
			u.now = now
		}
	}
}

type advisoryUC struct {
	jobs       repository.AdvisoryJobRepository
	dispatcher adapter.JobDispatcher
	limiter    SubmitLimiter
	log        *zerolog.Logger

	newID          func() string
	now            func() time.Time
	ttl            time.Duration
	maxPromptChars int
	dev            bool
}

func NewAdvisoryUseCase(jobs repository.AdvisoryJobRepository, dispatcher adapter.JobDispatcher, log *zerolog.Logger, dev bool, opts ...AdvisoryOption) *advisoryUC {
	l := log.With().Str("component", "advisory_uc").Logger()
	u := &advisoryUC{
		jobs:           jobs,
		dispatcher:     dispatcher,
		log:            &l,
		newID:          func() string { return ulid.Make().String() },
		now:            time.Now,
		ttl:            model.DefaultJobTTL,
		maxPromptChars: 8000,
		dev:            dev,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Submit validates and persists a PROCESSING job, then hands it to the
// dispatcher without waiting. A dispatch failure is logged and the job is
// left for the stale-job sweeper.
func (u *advisoryUC) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(prompt) > u.maxPromptChars {
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", domain.ErrInvalidArgument, u.maxPromptChars)
	}
	userID := strings.TrimSpace(req.UserID)

	if u.limiter != nil && userID != "" {
		ok, err := u.limiter.AllowSubmit(ctx, userID)
		if err != nil {
			// fail open: the limiter is advisory
			u.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRateLimitTriggered()
			return nil, domain.ErrRateLimited
		}
	}

	job := model.NewAdvisoryJob(u.newID(), model.AdvisoryInput{
		UserID:    userID,
		Prompt:    prompt,
		Prompts:   req.Prompts,
		Responses: req.Responses,
	}, u.now(), u.ttl)

	if err := u.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	metrics.IncJobSubmitted()

	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, u.log)
	log.Info().
		Str("prompt", logging.Redact(prompt, u.dev)).
		Int("history_pairs", len(job.Input.PairedTurns())).
		Msg("advisory job submitted")

	// the run owns its own copy and may finalize it before Dispatch returns
	res := &SubmitResult{JobID: job.ID, Status: job.Status}
	if err := u.dispatcher.Dispatch(ctx, job.Clone()); err != nil {
		log.Error().Err(err).Msg("dispatch failed, job left PROCESSING for the sweeper")
	}
	return res, nil
}

func (u *advisoryUC) Get(ctx context.Context, jobID string) (*model.AdvisoryJob, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, domain.ErrNotFound
	}
	return u.jobs.Get(ctx, jobID)
}

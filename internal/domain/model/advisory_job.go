package model

import (
	"time"

	"portfolio-advisor/internal/domain"
)

type AdvisoryJobStatus string

const (
	AdvisoryJobProcessing AdvisoryJobStatus = "PROCESSING"
	AdvisoryJobCompleted  AdvisoryJobStatus = "COMPLETED"
	AdvisoryJobFailed     AdvisoryJobStatus = "FAILED"
)

// DefaultJobTTL is how long a job record is kept before it may be reclaimed.
const DefaultJobTTL = 24 * time.Hour

func (s AdvisoryJobStatus) IsTerminal() bool {
	return s == AdvisoryJobCompleted || s == AdvisoryJobFailed
}

func (s AdvisoryJobStatus) Valid() bool {
	return s == AdvisoryJobProcessing || s.IsTerminal()
}

// AdvisoryInput is what the client submitted: the new question, the prior
// question/answer history and the submitting identity.
type AdvisoryInput struct {
	UserID    string   `json:"userId,omitempty"`
	Prompt    string   `json:"prompt"`
	Prompts   []string `json:"prompts,omitempty"`
	Responses []string `json:"responses,omitempty"`
}

// TurnPair is one prior exchange.
type TurnPair struct {
	Prompt   string
	Response string
}

// PairedTurns zips Prompts and Responses up to the shorter length.
// Unmatched trailing entries on either side are dropped.
func (in AdvisoryInput) PairedTurns() []TurnPair {
	n := min(len(in.Prompts), len(in.Responses))
	out := make([]TurnPair, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, TurnPair{Prompt: in.Prompts[i], Response: in.Responses[i]})
	}
	return out
}

type AdvisoryJob struct {
	ID          string
	Status      AdvisoryJobStatus
	Input       AdvisoryInput
	Result      string
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
}

// NewAdvisoryJob returns a job in PROCESSING state expiring ttl after now.
func NewAdvisoryJob(id string, in AdvisoryInput, now time.Time, ttl time.Duration) *AdvisoryJob {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	now = now.UTC()
	return &AdvisoryJob{
		ID:        id,
		Status:    AdvisoryJobProcessing,
		Input:     in,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (j *AdvisoryJob) IsTerminal() bool { return j.Status.IsTerminal() }

// Clone returns a deep copy that shares no slices or pointers with j.
func (j *AdvisoryJob) Clone() *AdvisoryJob {
	cp := *j
	cp.Input.Prompts = append([]string(nil), j.Input.Prompts...)
	cp.Input.Responses = append([]string(nil), j.Input.Responses...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// JobOutcome carries the fields written by the single terminal transition.
type JobOutcome struct {
	Status      AdvisoryJobStatus
	Result      string
	Error       string
	CompletedAt time.Time
}

func CompletedOutcome(result string, at time.Time) JobOutcome {
	return JobOutcome{Status: AdvisoryJobCompleted, Result: result, CompletedAt: at.UTC()}
}

func FailedOutcome(msg string, at time.Time) JobOutcome {
	return JobOutcome{Status: AdvisoryJobFailed, Error: msg, CompletedAt: at.UTC()}
}

func (o JobOutcome) Validate() error {
	switch o.Status {
	case AdvisoryJobCompleted:
		if o.Error != "" {
			return domain.ErrInvalidArgument
		}
	case AdvisoryJobFailed:
		if o.Result != "" {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	if o.CompletedAt.IsZero() {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Apply performs the terminal transition in memory. A job that is already
// terminal is left untouched and ErrJobAlreadyFinal is returned.
func (j *AdvisoryJob) Apply(o JobOutcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if j.IsTerminal() {
		return domain.ErrJobAlreadyFinal
	}
	at := o.CompletedAt
	j.Status = o.Status
	j.Result = o.Result
	j.Error = o.Error
	j.CompletedAt = &at
	return nil
}

// IsExpired reports whether the record may be reclaimed.
func (j *AdvisoryJob) IsExpired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}

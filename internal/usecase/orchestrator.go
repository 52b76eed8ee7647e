package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/domain/ports/repository"
	"portfolio-advisor/internal/infra/logging"
	"portfolio-advisor/internal/infra/metrics"
)

const (
	// MaxToolLoops bounds model invocations per job.
	MaxToolLoops = 5
	// PlaceholderAnswer is stored when the loop ends without final text.
	PlaceholderAnswer = "Unable to generate response"

	maxErrorLen            = 500
	defaultFinalizeTimeout = 10 * time.Second
)

// Compile-time check
var _ adapter.JobRunner = (*Orchestrator)(nil)

// Orchestrator drives one advisory job from PROCESSING to a terminal state.
type Orchestrator struct {
	jobs     repository.AdvisoryJobRepository
	holdings repository.HoldingsRepository
	builder  *ConversationBuilder
	tools    *ToolRegistry
	model    adapter.ModelClient
	counter  adapter.TokenCounter
	log      *zerolog.Logger

	modelName       string
	maxLoops        int
	finalizeTimeout time.Duration
	now             func() time.Time
	dev             bool
}

type OrchestratorOption func(*Orchestrator)

func WithMaxLoops(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxLoops = n
		}
	}
}

// WithTokenCounter enables the prompt-size estimate recorded before each call.
func WithTokenCounter(c adapter.TokenCounter, modelName string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.counter = c
		o.modelName = modelName
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithFinalizeTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.finalizeTimeout = d
		}
	}
}

// WithDevLogging logs prompts and answers unredacted.
func WithDevLogging(dev bool) OrchestratorOption {
	return func(o *Orchestrator) { o.dev = dev }
}

func NewOrchestrator(
	jobs repository.AdvisoryJobRepository,
	holdings repository.HoldingsRepository,
	builder *ConversationBuilder,
	tools *ToolRegistry,
	llm adapter.ModelClient,
	log *zerolog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	l := log.With().Str("component", "orchestrator").Logger()
	o := &Orchestrator{
		jobs:            jobs,
		holdings:        holdings,
		builder:         builder,
		tools:           tools,
		model:           llm,
		log:             &l,
		maxLoops:        MaxToolLoops,
		finalizeTimeout: defaultFinalizeTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the tool loop and writes exactly one terminal state. On
// failure the FAILED record is written before the error is returned.
func (o *Orchestrator) Run(ctx context.Context, job *model.AdvisoryJob) (err error) {
	ctx = logging.WithJobID(logging.WithUserID(ctx, job.Input.UserID), job.ID)
	log := logging.With(ctx, o.log)
	defer logging.TraceDuration(log, "Orchestrator.Run")()
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("advisory run panicked: %v", r)
			log.Error().Interface("panic", r).Msg("recovered panic in advisory run")
			if ferr := o.finalize(ctx, job, model.FailedOutcome(SanitizeError(err), o.now()), start, log); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
	}()

	if o.settled(ctx, job.ID, log) {
		return nil
	}

	log.Info().Str("prompt", logging.Redact(job.Input.Prompt, o.dev)).Msg("advisory job started")

	answer, calls, runErr := o.converse(ctx, job, log)
	metrics.ObserveModelLoops(calls)

	if runErr != nil {
		ev := log.Error().Err(runErr).Int("model_calls", calls)
		var me *adapter.ModelError
		if errors.As(runErr, &me) && me.Detail != "" {
			ev = ev.Str("provider_detail", me.Detail)
		}
		ev.Msg("advisory job failed")
		if ferr := o.finalize(ctx, job, model.FailedOutcome(SanitizeError(runErr), o.now()), start, log); ferr != nil {
			return errors.Join(runErr, ferr)
		}
		return runErr
	}

	return o.finalize(ctx, job, model.CompletedOutcome(answer, o.now()), start, log)
}

// settled reports whether the stored job no longer needs a run: it was
// finalized elsewhere (typically by the stale-job sweeper while queued) or
// has been reclaimed. A failed lookup runs the dispatched copy.
func (o *Orchestrator) settled(ctx context.Context, id string, log *zerolog.Logger) bool {
	current, err := o.jobs.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("job no longer stored, run skipped")
		return true
	case err != nil:
		log.Warn().Err(err).Msg("job reload failed, running dispatched copy")
		return false
	case current.IsTerminal():
		log.Info().Str("status", string(current.Status)).Msg("job already finalized, run skipped")
		return true
	}
	return false
}

func (o *Orchestrator) converse(ctx context.Context, job *model.AdvisoryJob, log *zerolog.Logger) (string, int, error) {
	msgs := o.builder.Build(job.Input, o.portfolio(ctx, job.Input.UserID, log))
	specs := o.tools.Specs()

	calls := 0
	for calls < o.maxLoops {
		if o.counter != nil {
			n := o.counter.CountTokens(msgs)
			metrics.ObservePromptTokens(o.modelName, n)
			log.Debug().Int("prompt_tokens_estimate", n).Int("turns", len(msgs)).Msg("invoking model")
		}

		reply, err := o.model.Invoke(ctx, msgs, specs)
		calls++
		if err != nil {
			return "", calls, fmt.Errorf("invoke model: %w", err)
		}

		if reply.Kind != adapter.ReplyToolRequest || reply.ToolCall == nil {
			text := strings.TrimSpace(reply.Text)
			if text == "" {
				text = PlaceholderAnswer
			}
			log.Info().Int("model_calls", calls).Str("answer", logging.Redact(text, o.dev)).Msg("model returned final answer")
			return text, calls, nil
		}

		call := *reply.ToolCall
		result, err := o.tools.Invoke(ctx, call.Name, call.Arguments)
		metrics.IncToolCall(toolLabel(o.tools, call.Name), err == nil)
		if err != nil {
			return "", calls, fmt.Errorf("tool call %s: %w", call.Name, err)
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return "", calls, fmt.Errorf("encode tool result: %w", err)
		}
		log.Debug().Str("tool", call.Name).RawJSON("args", normalizeArgs(call.Arguments)).Msg("tool call served")

		msgs = append(msgs,
			adapter.Message{Role: adapter.RoleAssistant, Content: reply.Text, ToolCalls: []adapter.ToolCall{call}},
			adapter.Message{Role: adapter.RoleTool, Content: string(payload), ToolCallID: call.ID, ToolName: call.Name},
		)
	}

	log.Warn().Int("model_calls", calls).Msg("tool loop exhausted without a final answer")
	return PlaceholderAnswer, calls, nil
}

// portfolio degrades to an empty portfolio when the store fails.
func (o *Orchestrator) portfolio(ctx context.Context, userID string, log *zerolog.Logger) []model.Holding {
	if userID == "" || o.holdings == nil {
		return nil
	}
	hs, err := o.holdings.GetHoldings(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("portfolio lookup failed, continuing without holdings")
		return nil
	}
	if hs == nil {
		hs = []model.Holding{}
	}
	return hs
}

// finalize writes the terminal state with a context that survives
// cancellation of the run itself.
func (o *Orchestrator) finalize(ctx context.Context, job *model.AdvisoryJob, out model.JobOutcome, start time.Time, log *zerolog.Logger) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.finalizeTimeout)
	defer cancel()

	if err := o.jobs.Finalize(fctx, job.ID, out); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyFinal) {
			log.Warn().Str("status", string(out.Status)).Msg("job already finalized, terminal write skipped")
		} else {
			log.Error().Err(err).Str("status", string(out.Status)).Msg("failed to write terminal state")
		}
		return fmt.Errorf("finalize job %s: %w", job.ID, err)
	}
	_ = job.Apply(out)

	elapsed := o.now().Sub(start)
	metrics.ObserveJobFinalized(string(out.Status), elapsed)
	log.Info().Str("status", string(out.Status)).Dur("duration", elapsed).Msg("advisory job finished")
	return nil
}

// SanitizeError renders err for storage on the job: single line, at most
// 500 characters.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if msg == "" {
		msg = "unknown error"
	}
	if utf8.RuneCountInString(msg) > maxErrorLen {
		r := []rune(msg)
		msg = string(r[:maxErrorLen-3]) + "..."
	}
	return msg
}

func toolLabel(r *ToolRegistry, name string) string {
	if r.Has(name) {
		return name
	}
	return "unknown"
}

func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 || !json.Valid(args) {
		return json.RawMessage(`null`)
	}
	return args
}

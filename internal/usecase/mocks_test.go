// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
)

// memJobRepo is a small in-memory implementation used by unit tests.
type memJobRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.AdvisoryJob
	createErr error
	finalizes int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.AdvisoryJob)}
}

func (m *memJobRepo) Create(ctx context.Context, job *model.AdvisoryJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) Get(ctx context.Context, id string) (*model.AdvisoryJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Finalize(ctx context.Context, id string, out model.JobOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := j.Apply(out); err != nil {
		return err
	}
	m.finalizes++
	return nil
}

func (m *memJobRepo) ListStaleProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.AdvisoryJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.AdvisoryJob
	for _, j := range m.store {
		if j.Status == model.AdvisoryJobProcessing && j.CreatedAt.Before(createdBefore) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.store {
		if j.IsExpired(now) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

type stubHoldings struct {
	holdings []model.Holding
	err      error
	calls    []string
}

func (s *stubHoldings) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	s.calls = append(s.calls, userID)
	return s.holdings, s.err
}

func (s *stubHoldings) ReplaceHoldings(ctx context.Context, userID string, holdings []model.Holding) error {
	s.holdings = holdings
	return s.err
}

type stubPrices struct {
	mu       sync.Mutex
	daily    [][]string
	intraday [][]string
	err      error
}

func (s *stubPrices) DailyPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	s.mu.Lock()
	s.daily = append(s.daily, symbols)
	s.mu.Unlock()
	return s.series(symbols, model.IntervalDaily)
}

func (s *stubPrices) IntradayPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	s.mu.Lock()
	s.intraday = append(s.intraday, symbols)
	s.mu.Unlock()
	return s.series(symbols, model.IntervalIntraday)
}

func (s *stubPrices) series(symbols []string, interval string) ([]model.PriceSeries, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.PriceSeries, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, model.PriceSeries{
			Symbol:   sym,
			Interval: interval,
			Success:  true,
			Points:   []model.PricePoint{{Date: "2025-01-02", Close: 100}},
		})
	}
	return out, nil
}

// scriptedModel replays replies in order and records every conversation it sees.
// Once the script runs out the last step repeats.
type scriptedModel struct {
	mu    sync.Mutex
	steps []modelStep
	seen  [][]adapter.Message
	tools [][]adapter.ToolSpec
}

type modelStep struct {
	reply *adapter.ModelReply
	err   error
	panic any
}

func (s *scriptedModel) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]adapter.Message, len(messages))
	copy(cp, messages)
	s.seen = append(s.seen, cp)
	s.tools = append(s.tools, tools)

	i := len(s.seen) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	if step.panic != nil {
		panic(step.panic)
	}
	return step.reply, step.err
}

func (s *scriptedModel) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func finalReply(text string) modelStep {
	return modelStep{reply: &adapter.ModelReply{Kind: adapter.ReplyFinal, Text: text}}
}

func toolReply(id, name, args string) modelStep {
	return modelStep{reply: &adapter.ModelReply{
		Kind:     adapter.ReplyToolRequest,
		ToolCall: &adapter.ToolCall{ID: id, Name: name, Arguments: []byte(args)},
	}}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job *model.AdvisoryJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job.ID)
	return d.err
}

type stubLimiter struct {
	allow bool
	err   error
}

func (s stubLimiter) AllowSubmit(ctx context.Context, userID string) (bool, error) {
	return s.allow, s.err
}

type wordCounter struct{}

func (wordCounter) CountTokens(messages []adapter.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n
}

// Package memory holds process-local stores used with --dev.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
)

var _ repository.AdvisoryJobRepository = (*AdvisoryJobRepo)(nil)

type AdvisoryJobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.AdvisoryJob
	now  func() time.Time
}

func NewAdvisoryJobRepo() *AdvisoryJobRepo {
	return &AdvisoryJobRepo{jobs: make(map[string]*model.AdvisoryJob), now: time.Now}
}

func (r *AdvisoryJobRepo) Create(ctx context.Context, job *model.AdvisoryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *AdvisoryJobRepo) Get(ctx context.Context, id string) (*model.AdvisoryJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok || j.IsExpired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return j.Clone(), nil
}

func (r *AdvisoryJobRepo) Finalize(ctx context.Context, id string, out model.JobOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	return j.Apply(out)
}

func (r *AdvisoryJobRepo) ListStaleProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.AdvisoryJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.AdvisoryJob
	for _, j := range r.jobs {
		if j.Status == model.AdvisoryJobProcessing && j.CreatedAt.Before(createdBefore) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AdvisoryJobRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, j := range r.jobs {
		if j.IsExpired(now) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

var _ repository.HoldingsRepository = (*HoldingsRepo)(nil)

type HoldingsRepo struct {
	mu    sync.RWMutex
	users map[string][]model.Holding
}

func NewHoldingsRepo() *HoldingsRepo {
	return &HoldingsRepo{users: make(map[string][]model.Holding)}
}

func (r *HoldingsRepo) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Holding{}, r.users[userID]...), nil
}

func (r *HoldingsRepo) ReplaceHoldings(ctx context.Context, userID string, holdings []model.Holding) error {
	cp := make([]model.Holding, 0, len(holdings))
	for _, h := range holdings {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		cp = append(cp, h)
	}
	sort.Slice(cp, func(a, b int) bool { return cp[a].Symbol < cp[b].Symbol })
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = cp
	return nil
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
)

func TestAdvisoryJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewAdvisoryJobRepo(testPool, NewTxManager(testPool))
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("should create and read back a job", func(t *testing.T) {
		cleanup(t)
		job := model.NewAdvisoryJob("job-1", model.AdvisoryInput{
			UserID:    "u1",
			Prompt:    "Should I rebalance?",
			Prompts:   []string{"p1", "p2"},
			Responses: []string{"r1"},
		}, now, 0)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		got, err := repo.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.Status != model.AdvisoryJobProcessing || got.Input.Prompt != "Should I rebalance?" {
			t.Errorf("unexpected job: %+v", got)
		}
		if len(got.Input.Prompts) != 2 || len(got.Input.Responses) != 1 {
			t.Errorf("history not round-tripped: %+v", got.Input)
		}
		if got.Result != "" || got.Error != "" || got.CompletedAt != nil {
			t.Errorf("processing job should have no terminal fields: %+v", got)
		}
		if !got.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
			t.Errorf("expires_at = %s, want %s", got.ExpiresAt, now.Add(24*time.Hour))
		}

		if err := repo.Create(ctx, job); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists on duplicate id, got %v", err)
		}
	})

	t.Run("should return ErrNotFound for unknown id", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Finalize(ctx, "missing", model.CompletedOutcome("x", now)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on finalize, got %v", err)
		}
	})

	t.Run("should finalize exactly once", func(t *testing.T) {
		cleanup(t)
		job := model.NewAdvisoryJob("job-2", model.AdvisoryInput{Prompt: "q"}, now, 0)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create: %v", err)
		}

		if err := repo.Finalize(ctx, job.ID, model.CompletedOutcome("answer", now)); err != nil {
			t.Fatalf("first finalize: %v", err)
		}
		err := repo.Finalize(ctx, job.ID, model.FailedOutcome("late", now.Add(time.Second)))
		if !errors.Is(err, domain.ErrJobAlreadyFinal) {
			t.Fatalf("expected ErrJobAlreadyFinal, got %v", err)
		}

		got, _ := repo.Get(ctx, job.ID)
		if got.Status != model.AdvisoryJobCompleted || got.Result != "answer" || got.Error != "" {
			t.Errorf("terminal record changed: %+v", got)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
			t.Errorf("completed_at = %v, want %s", got.CompletedAt, now)
		}
	})

	t.Run("should list stale processing jobs and delete expired ones", func(t *testing.T) {
		cleanup(t)
		old := model.NewAdvisoryJob("old", model.AdvisoryInput{Prompt: "q"}, now.Add(-time.Hour), 0)
		recent := model.NewAdvisoryJob("recent", model.AdvisoryInput{Prompt: "q"}, now, 0)
		expired := model.NewAdvisoryJob("expired", model.AdvisoryInput{Prompt: "q"}, now.Add(-48*time.Hour), 0)
		for _, j := range []*model.AdvisoryJob{old, recent, expired} {
			if err := repo.Create(ctx, j); err != nil {
				t.Fatalf("create %s: %v", j.ID, err)
			}
		}

		stale, err := repo.ListStaleProcessing(ctx, now.Add(-15*time.Minute), 10)
		if err != nil {
			t.Fatalf("list stale: %v", err)
		}
		if len(stale) != 2 || stale[0].ID != "expired" || stale[1].ID != "old" {
			t.Fatalf("unexpected stale list: %+v", stale)
		}

		if _, err := repo.Get(ctx, "expired"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expired job should read as not found before deletion, got %v", err)
		}

		n, err := repo.DeleteExpired(ctx, now)
		if err != nil || n != 1 {
			t.Fatalf("DeleteExpired = %d, %v; want 1", n, err)
		}
		if _, err := repo.Get(ctx, "expired"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expired job should be gone, got %v", err)
		}
	})
}

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
)

func TestPool_RunsAndDrainsOnStop(t *testing.T) {
	p := NewPool(2, 10, nil)
	p.Start(context.Background())

	var ran int32
	for i := 0; i < 8; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	p.Stop()
	if got := atomic.LoadInt32(&ran); got != 8 {
		t.Fatalf("ran %d tasks, want 8", got)
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
	p.Stop() // second stop is a no-op
}

func TestPool_RejectsWhenFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	block := make(chan struct{})
	started := make(chan struct{})
	p.Start(context.Background())
	defer func() { close(block); p.Stop() }()

	_ = p.Submit(func(ctx context.Context) error { close(started); <-block; return nil })
	<-started
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("queue slot should be free: %v", err)
	}
	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := p.Submit(nil); err == nil {
		t.Fatal("nil task must be rejected")
	}
}

type recordingRunner struct {
	mu   sync.Mutex
	ids  []string
	done chan struct{}
}

func (r *recordingRunner) Run(ctx context.Context, job *model.AdvisoryJob) error {
	r.mu.Lock()
	r.ids = append(r.ids, job.ID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestPoolDispatcher(t *testing.T) {
	log := zerolog.Nop()
	runner := &recordingRunner{done: make(chan struct{}, 1)}
	p := NewPool(1, 1, &log)
	d := NewPoolDispatcher(p, runner, &log)

	// request context is already gone; the run must not depend on it
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	job := model.NewAdvisoryJob("j1", model.AdvisoryInput{Prompt: "q"}, time.Now(), 0)
	if err := d.Dispatch(reqCtx, job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(reqCtx, job); !errors.Is(err, domain.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed on full queue, got %v", err)
	}

	p.Start(context.Background())
	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	p.Stop()
	if len(runner.ids) != 1 || runner.ids[0] != "j1" {
		t.Fatalf("unexpected runs %v", runner.ids)
	}
}

// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Submit never
// blocks: a saturated queue rejects the task.
type Pool struct {
	wg      sync.WaitGroup
	mu      sync.RWMutex
	jobs    chan Task
	stopped bool
	n       int
	log     *zerolog.Logger
}

// NewPool sizes the queue at queueSize, or workers*4 when queueSize <= 0.
func NewPool(workers, queueSize int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Pool{jobs: make(chan Task, queueSize), n: workers, log: log}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if task == nil {
					continue
				}
				if err := task(ctx); err != nil {
					p.log.Error().Err(err).Int("worker", id).Msg("task error")
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Int("queue", cap(p.jobs)).Msg("worker pool started")
}

// Stop rejects new tasks and waits until every queued task has run.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Queued reports how many tasks are waiting for a worker.
func (p *Pool) Queued() int { return len(p.jobs) }

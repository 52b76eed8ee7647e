package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/usecase"
)

const sweepLockKey = "lock:advisory:sweep"

type sweeper interface {
	Sweep(ctx context.Context) (usecase.SweepResult, error)
}

// Locker keeps replicas from sweeping at the same time. Optional.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// StaleJobSweeper periodically fails abandoned jobs and reclaims expired ones.
type StaleJobSweeper struct {
	interval time.Duration
	sweeper  sweeper
	locker   Locker
	log      *zerolog.Logger
}

func NewStaleJobSweeper(interval time.Duration, s sweeper, locker Locker, logger *zerolog.Logger) *StaleJobSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "StaleJobSweeper").Logger()
	return &StaleJobSweeper{interval: interval, sweeper: s, locker: locker, log: &l}
}

// Run sweeps once right away, then on every tick until ctx is done.
func (w *StaleJobSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stale job sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale job sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single guarded sweep. Errors are logged, not returned.
func (w *StaleJobSweeper) RunOnce(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			w.log.Debug().Msg("sweep running elsewhere, skipping")
			return
		}
		if err != nil {
			w.log.Error().Err(err).Msg("sweep lock")
			return
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock")
			}
		}()
	}

	res, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("stale job sweep error")
	}
	if res.Failed > 0 || res.Deleted > 0 {
		w.log.Info().Int("failed", res.Failed).Int64("deleted", res.Deleted).Msg("stale jobs swept")
	}
}

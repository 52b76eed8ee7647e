package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/config"
	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/domain/ports/repository"
	aiAdapters "portfolio-advisor/internal/infra/adapters/ai"
	"portfolio-advisor/internal/infra/adapters/prices"
	"portfolio-advisor/internal/infra/db/memory"
	pg "portfolio-advisor/internal/infra/db/postgres"
	red "portfolio-advisor/internal/infra/redis"
	"portfolio-advisor/internal/infra/sched"
	"portfolio-advisor/internal/usecase"
)

const holdingsCacheTTL = 5 * time.Minute

// app holds the shared infrastructure every command builds on.
type app struct {
	cfg *config.Config
	log *zerolog.Logger

	pool  *pgxpool.Pool
	redis *red.Client

	jobs     repository.AdvisoryJobRepository
	holdings repository.HoldingsRepository

	closers []func()
}

func buildApp(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, log)
	}

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	switch cfg.Storage.Driver {
	case "postgres":
		a.jobs = pg.NewAdvisoryJobRepo(a.pool, pg.NewTxManager(a.pool))
	case "redis":
		a.jobs = red.NewAdvisoryJobStore(a.redis)
	case "memory":
		a.jobs = memory.NewAdvisoryJobRepo()
	}

	if a.pool != nil {
		a.holdings = pg.NewHoldingsRepo(a.pool, pg.NewTxManager(a.pool))
		if a.redis != nil {
			a.holdings = pg.NewHoldingsRepoCacheDecorator(a.holdings, a.redis, holdingsCacheTTL, log)
		}
	} else {
		a.holdings = memory.NewHoldingsRepo()
	}

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Str("dispatch", cfg.Dispatch.Driver).
		Bool("postgres", a.pool != nil).
		Bool("redis", a.redis != nil).
		Msg("infrastructure ready")
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) priceProvider() (adapter.PriceProvider, error) {
	if a.cfg.Prices.BaseURL == "" {
		if !a.cfg.Runtime.Dev {
			a.log.Warn().Msg("prices.base_url not set; using static price data")
		}
		return prices.NewStaticProvider(), nil
	}
	return prices.NewHTTPProvider(a.cfg.Prices.BaseURL, a.cfg.Prices.Timeout)
}

func (a *app) newOrchestrator(ctx context.Context) (*usecase.Orchestrator, error) {
	priceSrc, err := a.priceProvider()
	if err != nil {
		return nil, err
	}
	llm, _, err := aiAdapters.NewModelClient(ctx, a.cfg.AI, a.cfg.Runtime.Dev, a.log)
	if err != nil {
		return nil, err
	}
	counter := aiAdapters.NewTiktokenCounter(a.cfg.AI.DefaultModel, a.log)

	return usecase.NewOrchestrator(
		a.jobs,
		a.holdings,
		usecase.NewConversationBuilder(time.Now),
		usecase.NewToolRegistry(priceSrc),
		llm,
		a.log,
		usecase.WithMaxLoops(a.cfg.AI.MaxToolLoops),
		usecase.WithTokenCounter(counter, a.cfg.AI.DefaultModel),
		usecase.WithDevLogging(a.cfg.Runtime.Dev),
	), nil
}

func (a *app) newSweeper() *usecase.JobSweeper {
	return usecase.NewJobSweeper(a.jobs, a.cfg.Jobs.StaleAfter, a.cfg.Jobs.SweepBatch, a.log)
}

// locker is nil without Redis; the sweeper then runs unguarded.
func (a *app) locker() sched.Locker {
	if a.redis == nil {
		return nil
	}
	return red.NewLocker(a.redis)
}

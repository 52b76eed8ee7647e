package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/infra/api"
	apiv1 "portfolio-advisor/internal/infra/api/apiv1"
	"portfolio-advisor/internal/infra/bus"
	red "portfolio-advisor/internal/infra/redis"
	"portfolio-advisor/internal/infra/sched"
	"portfolio-advisor/internal/infra/worker"
	"portfolio-advisor/internal/usecase"
)

var (
	serveNoSweep bool
	shutdownWait time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the in-process worker pool when dispatch.driver=pool)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoSweep, "no-sweep", false, "do not run the stale job sweeper in this process")
	serveCmd.Flags().DurationVar(&shutdownWait, "shutdown-timeout", 30*time.Second, "grace period for in-flight requests and jobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Jobs outlive the signal context so a shutdown drains them.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	var (
		dispatcher adapter.JobDispatcher
		pool       *worker.Pool
	)
	switch cfg.Dispatch.Driver {
	case "pool":
		orch, err := a.newOrchestrator(ctx)
		if err != nil {
			return err
		}
		pool = worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
		pool.Start(runCtx)
		dispatcher = worker.NewPoolDispatcher(pool, orch, logger)
	case "nats":
		nc, err := bus.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		dispatcher = bus.NewNATSDispatcher(nc, cfg.NATS.Subject, logger)
	}

	opts := []usecase.AdvisoryOption{
		usecase.WithJobTTL(cfg.Jobs.TTL),
		usecase.WithMaxPromptChars(cfg.Jobs.MaxPromptChars),
	}
	if cfg.RateLimit.PerMinute > 0 && a.redis != nil {
		opts = append(opts, usecase.WithSubmitLimiter(red.NewSubmitLimiter(red.NewRateLimiter(a.redis), cfg.RateLimit.PerMinute)))
	}
	advisory := usecase.NewAdvisoryUseCase(a.jobs, dispatcher, logger, cfg.Runtime.Dev, opts...)

	if !serveNoSweep {
		sw := sched.NewStaleJobSweeper(cfg.Jobs.SweepInterval, a.newSweeper(), a.locker(), logger)
		go func() { _ = sw.Run(ctx) }()
	}

	handler := api.NewRouter(apiv1.NewServer(advisory, apiv1.NewAuthenticator(cfg.Auth.JWTSecret), logger), cfg.HTTP.RequestTimeout, logger)
	srv := api.NewServer(cfg.HTTP.Port, handler, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if pool != nil {
		done := make(chan struct{})
		go func() { pool.Stop(); close(done) }()
		select {
		case <-done:
		case <-sctx.Done():
			// remaining jobs fail fast and are finalized as FAILED
			cancelRuns()
			<-done
		}
	}
	logger.Info().Msg("bye")
	return nil
}

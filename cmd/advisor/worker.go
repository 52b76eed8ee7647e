package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"portfolio-advisor/internal/infra/bus"
	"portfolio-advisor/internal/infra/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume advisory jobs from NATS and run them",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if cfg.NATS.URL == "" {
		return errors.New("worker requires nats.url")
	}
	if cfg.Storage.Driver == "memory" {
		return errors.New("worker needs a shared job store: set storage.driver to postgres or redis")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}

	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()
	pool := worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
	pool.Start(runCtx)

	nc, err := bus.Connect(cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	consumer := bus.NewJobConsumer(a.jobs, orch, pool, logger)
	if err := consumer.Subscribe(nc, cfg.NATS.Subject, cfg.NATS.Queue); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("worker stopping")
	consumer.Unsubscribe()
	pool.Stop()
	return nil
}

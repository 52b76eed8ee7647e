package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"portfolio-advisor/internal/infra/sched"
)

var sweepLoop bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail abandoned PROCESSING jobs and reclaim expired ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sw := sched.NewStaleJobSweeper(cfg.Jobs.SweepInterval, a.newSweeper(), a.locker(), logger)
		if sweepLoop {
			return sw.Run(ctx)
		}
		sw.RunOnce(ctx)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepLoop, "loop", false, "keep sweeping every jobs.sweep_interval")
	rootCmd.AddCommand(sweepCmd)
}

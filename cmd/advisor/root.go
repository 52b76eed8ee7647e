package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-advisor/internal/config"
	"portfolio-advisor/internal/infra/logging"
	"portfolio-advisor/internal/infra/metrics"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath string
	devMode bool

	cfg    *config.Config
	logger *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Portfolio advisory job service",
	Long:  "Accepts financial questions, runs them through an LLM with market-data tools in the background and serves the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig(cfgPath, devMode)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c
		logger = logging.New(cfg.Log, cfg.Runtime.Dev)
		metrics.MustRegister()
		metrics.SetBuildInfo(version, commit)
		if cfg.Runtime.Dev {
			logger.Warn().Msg("[DEV MODE] enabled")
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "enable developer mode (in-memory storage, echo model)")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

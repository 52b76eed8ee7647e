package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiv1 "portfolio-advisor/internal/infra/api/apiv1"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Mint a bearer token for a user (needs auth.jwt_secret)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := apiv1.NewAuthenticator(cfg.Auth.JWTSecret)
		if auth == nil {
			return errors.New("auth.jwt_secret is not configured")
		}
		tok, err := auth.Mint(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

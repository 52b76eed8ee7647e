package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"portfolio-advisor/internal/domain/model"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load portfolio holdings into Postgres",
	Long:  "Replaces the holdings of every user in the input file. Without --file a small sample portfolio is written for user demo-user.",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", `JSON file shaped {"<userId>": [{"symbol":"AAPL","quantity":10,"avgCost":150}]}`)
	rootCmd.AddCommand(seedCmd)
}

var sampleHoldings = map[string][]model.Holding{
	"demo-user": {
		{Symbol: "AAPL", Quantity: 25, AvgCost: 172.40},
		{Symbol: "MSFT", Quantity: 12, AvgCost: 331.10},
		{Symbol: "VOO", Quantity: 8, AvgCost: 402.00},
	},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if cfg.Database.URL == "" {
		return errors.New("seed requires database.url")
	}
	data := sampleHoldings
	if seedFile != "" {
		b, err := os.ReadFile(seedFile)
		if err != nil {
			return err
		}
		data = map[string][]model.Holding{}
		if err := json.Unmarshal(b, &data); err != nil {
			return fmt.Errorf("parse %s: %w", seedFile, err)
		}
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	users := make([]string, 0, len(data))
	for u := range data {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		if err := a.holdings.ReplaceHoldings(ctx, u, data[u]); err != nil {
			return fmt.Errorf("seed %s: %w", u, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded: %s (%d holdings)\n", u, len(data[u]))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Seeding complete.")
	return nil
}

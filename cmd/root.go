package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridhound/gridhound/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gridhound",
	Short: "Interconnection queue surveillance for undisclosed large-load facilities",
	Long:  "Fetches interconnection-queue disclosures from grid operators, normalizes them into a canonical schema, scores each record for data-center likelihood, and tracks results across runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

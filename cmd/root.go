package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rankgrid",
	Short: "Geo-grid local rank tracking",
	Long:  "Samples a keyword's local map ranking on a geographic grid around a business, matches the business in each result set, and aggregates rank metrics.",
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

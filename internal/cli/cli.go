package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockPulse/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "stockpulse",
		Short: "StockPulse - stock signals dashboard backend",
		Long: `StockPulse serves a stock dashboard: a board of overall technical
signals under a per-viewer indicator selection, stock detail pages with key
metrics and charts, live updates over WebSocket and AI section summaries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Configuration file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newSignalCmd(load))
	rootCmd.AddCommand(newHistoryCmd(load))

	return rootCmd
}

type configLoader func() (*config.Config, error)

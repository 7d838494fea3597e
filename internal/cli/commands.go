package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"StockPulse/internal/di"
	domsignal "StockPulse/internal/domain/signal"
	"StockPulse/internal/service/provider"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
)

// newServeCmd creates the serve command
func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
}

// newSignalCmd prints the board straight from the upstream provider.
func newSignalCmd(load configLoader) *cobra.Command {
	var indicators string

	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Print every stock's overall signal",
		Long: `Fetch the stock list from the upstream provider and print each stock's
overall signal under the given indicator selection.
Example: stockpulse signal --indicators EMA,RSI,MACD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := domsignal.ParseMask(indicators)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mem := cache.NewMemoryCache()
			defer mem.Close()
			client := provider.New(provider.Config{
				BaseURL:  cfg.Provider.BaseURL,
				Timeout:  cfg.Provider.Timeout,
				Attempts: cfg.Provider.Attempts,
			}, mem, applogger.Nop())

			stocks := usecase.NewStocksUseCase(client, nil, metrics.Nop{}, applogger.Nop())
			board, err := stocks.BoardWithMask(ctx, mask)
			if err != nil {
				return err
			}
			renderBoard(cmd.OutOrStdout(), board)
			return nil
		},
	}
	cmd.Flags().StringVar(&indicators, "indicators", "all", "Comma separated indicators, \"all\" or \"none\"")
	return cmd
}

// newHistoryCmd prints recorded snapshots for one stock.
func newHistoryCmd(load configLoader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [STOCK_ID]",
		Short: "Print the recorded overall-signal history of a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			l := applogger.Nop()
			h, err := di.ProvideSignalHistory(cfg, l)
			if err != nil {
				return err
			}
			defer h.Close()

			snaps, err := h.Query(context.Background(), args[0], limit)
			if err != nil {
				return fmt.Errorf("query history: %w", err)
			}
			renderHistory(cmd.OutOrStdout(), args[0], snaps)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum snapshots to print")
	return cmd
}

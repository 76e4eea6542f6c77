package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"MarketPulse/internal/di"
	"MarketPulse/internal/domain/models"

	"github.com/spf13/cobra"
)

var (
	refreshCache string
	refreshAsset string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh one cache once, for every configured asset or a single one",
	Example: `  marketpulse refresh --cache quotes
  marketpulse refresh --cache intelligence --asset BTC`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, runErr := app.RefreshNow(ctx, refreshCache, refreshAsset)

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			cmd.PrintErrf("close: %v\n", err)
		}
		if runErr != nil {
			return runErr
		}

		cmd.Printf("cache=%s targets=%d succeeded=%d failed=%d swept=%d took=%s\n",
			report.Cache, report.Targets, report.Succeeded, report.Failed, report.Swept, report.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshCache, "cache", models.CacheIntelligence, "cache to refresh: intelligence or quotes")
	refreshCmd.Flags().StringVar(&refreshAsset, "asset", "", "refresh only this asset or symbol")
}

package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"MarketPulse/pkg/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "Cached market intelligence and quote aggregation service",
	Long: `MarketPulse keeps per-asset intelligence summaries and market quotes
fresh in TTL caches, refreshed on a schedule from community votes, news
and AI providers, and serves them through a REST and websocket API.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before environment overrides")
	rootCmd.AddCommand(serveCmd, refreshCmd)
}

// loadConfig reads the dotenv file when present, then the YAML config with
// environment overrides on top.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	log.Printf("env=%s assets=%d snapshot=%s", cfg.Environment, len(cfg.Assets.Stocks)+len(cfg.Assets.Crypto), cfg.Snapshot.Backend)
	return cfg, nil
}

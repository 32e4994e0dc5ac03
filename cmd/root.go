package cmd

import (
	"fmt"
	"os"

	"plaid-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configFile is the optional config file given with --config.
	configFile string
	// verbose forces debug logging and per-page progress.
	verbose bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "plaid-sync",
	Short: "Sync Plaid transactions into a local database",
	Long: `plaid-sync fetches transactions, balances and item metadata from Plaid
and reconciles them into a local SQLite (or MySQL) database. Transactions that
disappear from Plaid are archived, never deleted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with debug level gives readable ISO8601 timestamps
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, toml, json, ...); defaults to ./plaid-sync.*")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging and fetch progress")
}

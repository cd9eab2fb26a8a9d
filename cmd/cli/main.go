package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	baseURL        string
	timeout        time.Duration
	userID         string
	databaseURL    string
	migrationsPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "stockledger-cli",
		Short:         "StockLedger CLI tool",
		Long:          `A command line interface for the StockLedger reservation API and its database schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the StockLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("STOCKLEDGER_USER_ID"), "User ID sent as X-User-ID on mutations")

	rootCmd.AddCommand(
		newLedgerCmd(opts),
		newContractsCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}

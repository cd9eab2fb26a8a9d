package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iho/stockledger/internal/infrastructure/postgres"
)

func newLedgerCmd(opts *cliOptions) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	ledgerCmd.AddCommand(
		&cobra.Command{
			Use:   "consistency",
			Short: "Check that every entry's stock adds up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, nil)
				var apiErr *apiError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
					fmt.Fprintln(cmd.OutOrStdout(), "Consistency check FAILED")
					_ = printJSON(cmd.OutOrStdout(), body)
					return errors.New("ledger is inconsistent")
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
				return printJSON(cmd.OutOrStdout(), body)
			},
		},
		&cobra.Command{
			Use:   "entry <id>",
			Short: "Show a ledger entry's stock",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/ledger-entries/"+url.PathEscape(args[0]), nil, nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), body)
			},
		},
	)

	return ledgerCmd
}

func newContractsCmd(opts *cliOptions) *cobra.Command {
	contractsCmd := &cobra.Command{
		Use:     "contracts",
		Aliases: []string{"contract"},
		Short:   "Reserve, cancel and inspect contracts",
	}

	var (
		entryID        string
		quantity       int64
		idempotencyKey string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Reserve stock from a ledger entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"ledger_entry_id": entryID,
				"quantity":        quantity,
			}
			_, body, err := newAPIClient(opts).mutate(cmd.Context(), http.MethodPost, "/api/v1/contracts", payload, idempotencyKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	createCmd.Flags().StringVar(&entryID, "entry", "", "Ledger entry ID")
	createCmd.Flags().Int64Var(&quantity, "quantity", 0, "Quantity to reserve")
	createCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	_ = createCmd.MarkFlagRequired("entry")
	_ = createCmd.MarkFlagRequired("quantity")

	var cancelKey string
	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a contract and restore its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/contracts/" + url.PathEscape(args[0]) + "/cancel"
			if _, _, err := newAPIClient(opts).mutate(cmd.Context(), http.MethodPost, path, nil, cancelKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contract %s canceled\n", args[0])
			return nil
		},
	}
	cancelCmd.Flags().StringVar(&cancelKey, "idempotency-key", "", "Idempotency-Key header value")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an active contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/contracts/"+url.PathEscape(args[0]), nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the audit trail of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/contracts/" + url.PathEscape(args[0]) + "/history"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			_, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")

	contractsCmd.AddCommand(createCmd, cancelCmd, getCmd, historyCmd)
	return contractsCmd
}

func newMigrateCmd(opts *cliOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.databaseURL == "" {
				return errors.New("--database-url (or DATABASE_URL) is required")
			}
			return nil
		},
	}
	migrateCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	migrateCmd.PersistentFlags().StringVar(&opts.migrationsPath, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.RunMigrations(opts.databaseURL, opts.migrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.RunMigrationsDown(opts.databaseURL, opts.migrationsPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := postgres.MigrationVersion(opts.databaseURL, opts.migrationsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
				return nil
			},
		},
	)

	return migrateCmd
}

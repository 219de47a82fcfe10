package main

import (
	"fmt"

	"github.com/artpar/maxrange/adapters/postgres"
	"github.com/artpar/maxrange/adapters/sqlite"
	"github.com/artpar/maxrange/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL schema migrations",
	Long: `Create or upgrade the ride, monthly and yearly tables of a sqlite or
postgres store. Already applied migrations are skipped. DynamoDB tables
are provisioned outside maxrange.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var applied []string
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err = db.Migrate(cmd.Context())
		if err != nil {
			return err
		}
	case "postgres":
		store, err := postgres.Open(cmd.Context(), cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		applied, err = store.Migrate(cmd.Context())
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("store driver %q has no migrations", cfg.Store.Driver)
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "Schema is up to date.")
		return nil
	}
	for _, v := range applied {
		fmt.Fprintf(out, "  %s applied %s\n", checkMark, v)
	}
	return nil
}

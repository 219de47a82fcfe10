package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/artpar/maxrange/adapters/postgres"
	"github.com/artpar/maxrange/adapters/sqlite"
	"github.com/artpar/maxrange/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the maxrange configuration.

Checks:
  - YAML syntax is valid (or environment variables when no file exists)
  - Drivers and required fields are present
  - SQL store is reachable (optional)

Examples:
  maxrange validate
  maxrange validate --config /etc/maxrange/config.yaml --check-store`,
	RunE: runValidate,
}

var validateCheckStore bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckStore, "check-store", false, "check that a sqlite or postgres store can be opened")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	source := cfgFile
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		source = "environment"
	}
	fmt.Fprintf(out, "Validating %s...\n\n", source)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Store: %s\n", checkMark, cfg.Store.Driver)
	fmt.Fprintf(out, "  %s Publisher: %s (%s)\n", checkMark, cfg.Publish.Driver, cfg.Publish.Encoding)
	if len(cfg.Ranges.IMEIs) == 0 {
		fmt.Fprintf(out, "  %s Devices: none (invocations will return %q)\n", crossMark, "IMEI cannot be empty")
	} else {
		fmt.Fprintf(out, "  %s Devices: %d\n", checkMark, len(cfg.Ranges.IMEIs))
	}

	if validateCheckStore {
		if err := checkStore(cmd.Context(), cfg.Store); err != nil {
			fmt.Fprintf(out, "  %s Store reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Store reachable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Reloadable without restart: %s\n", strings.Join(config.ReloadableFields(), ", "))
	fmt.Fprintf(out, "Restart required:           %s\n", strings.Join(config.NonReloadableFields(), ", "))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkStore(ctx context.Context, cfg config.StoreConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.PingContext(ctx)
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		return store.Close()
	}
	return fmt.Errorf("no connectivity check for driver %q", cfg.Driver)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

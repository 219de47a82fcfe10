package main

import (
	"fmt"
	"os"

	"github.com/artpar/maxrange/app"
	"github.com/artpar/maxrange/bootstrap"
	"github.com/artpar/maxrange/config"
	"github.com/spf13/cobra"
)

var (
	hotReload  bool
	serveIMEIs string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger",
	Long: `Start the maxrange HTTP server.

The server will:
  - Load configuration from maxrange.yaml (or --config)
  - Or load configuration from MAXRANGE_* environment variables
  - Open the ride store and the publisher
  - Run an invocation for every POST /v1/ranges

With a config file, edits to ranges.* and logging.level are applied
without a restart (file watch and SIGHUP).

Environment variables (for container deployments):
  IMEIS                    - Comma separated device list
  MAXRANGE_STORE_DRIVER    - dynamodb, sqlite, postgres or memory
  MAXRANGE_STORE_DSN       - SQLite path or PostgreSQL URL
  MAXRANGE_STORE_REGION    - AWS region (default: ap-south-1)
  MAXRANGE_SERVER_PORT     - Server port (default: 8080)
  MAXRANGE_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  maxrange serve
  maxrange serve --config /etc/maxrange/config.yaml
  maxrange serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
	serveCmd.Flags().StringVar(&serveIMEIs, "imeis", "", "comma separated device list, overrides config")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	a, err := bootstrap.Load(cmd.Context(), cfgFile, bootstrap.Options{
		Version: version,
		IMEIs:   app.SplitIMEIs(serveIMEIs),
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if !hasConfigFile {
		a.Logger.Info().Msg("running with environment variables (no config file)")
	}

	// Hot reload only works with a config file
	if hasConfigFile && hotReload {
		holder, err := config.NewHolder(cfgFile, a.Logger)
		if err != nil {
			a.Shutdown()
			return fmt.Errorf("error loading config: %w", err)
		}
		a.Watch(holder)
		if err := holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}

	// Run (blocks until shutdown)
	return a.Run()
}

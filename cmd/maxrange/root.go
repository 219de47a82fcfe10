package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "maxrange",
	Short: "Per-device maximum trip distance by month and by year",
	Long: `maxrange scans each configured device's ride log, finds the longest
run of trips between charging sessions in every month of 2023 and 2024,
and stores the monthly maximum.

Triggers:
  maxrange run      # One invocation, result printed as JSON
  maxrange serve    # HTTP trigger (POST /v1/ranges)
  maxrange lambda   # AWS Lambda runtime

Operations:
  maxrange validate # Validate configuration
  maxrange migrate  # Apply SQL schema migrations
  maxrange import   # Load rides into a SQL store`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "maxrange.yaml", "config file path (falls back to environment variables when missing)")
}

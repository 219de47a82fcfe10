package main

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/maxrange/app"
	"github.com/artpar/maxrange/bootstrap"
	"github.com/spf13/cobra"
)

var (
	runMonth  string
	runIMEIs  string
	runPretty bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one invocation and print the result",
	Long: `Run a single invocation against the configured store and print the
response as JSON: the list of monthly entries, or {"error": ...} when the
device list is empty or the month filter is malformed.

Examples:
  maxrange run
  maxrange run --month 2023-07
  maxrange run --imeis 861100000000001,861100000000002 --pretty`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runMonth, "month", "", "only scan this month (YYYY-MM)")
	runCmd.Flags().StringVar(&runIMEIs, "imeis", "", "comma separated device list, overrides config")
	runCmd.Flags().BoolVar(&runPretty, "pretty", false, "indent the JSON output")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.Load(cmd.Context(), cfgFile, bootstrap.Options{
		Version:   version,
		IMEIs:     app.SplitIMEIs(runIMEIs),
		LogOutput: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Shutdown()

	res, err := a.Invoke(cmd.Context(), app.Request{InputRideMonth: runMonth})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if runPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res.Payload())
}

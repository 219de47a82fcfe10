package main

import (
	"fmt"

	"github.com/artpar/maxrange/bootstrap"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve invocations from the AWS Lambda runtime",
	Long: `Hand control to the AWS Lambda runtime. Each event is
{"input_ride_month": "YYYY-MM"} (optional) and the response is the same
JSON as "maxrange run". Configuration normally comes from the function's
environment: IMEIS plus MAXRANGE_* overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap.Load(cmd.Context(), cfgFile, bootstrap.Options{Version: version})
		if err != nil {
			return fmt.Errorf("error initializing: %w", err)
		}
		a.RunLambda()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/00PrabalK00/RosScope/cli"
	"github.com/00PrabalK00/RosScope/pkg/sdk"
)

func main() {
	var engineURL string

	rootCmd := &cobra.Command{
		Use:   "rosscope-cli",
		Short: "CLI client for the RosScope runtime engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.SetSDK(sdk.NewSDK(engineURL))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&engineURL, "url", "u", "http://localhost:8871", "Engine API URL")

	rootCmd.AddCommand(
		cli.NewPollCmd(),
		cli.NewActionsCmd(),
		cli.NewFleetCmd(),
		cli.NewSnapshotCmd(),
		cli.NewSessionCmd(),
		cli.NewParametersCmd(),
		cli.NewTelemetryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

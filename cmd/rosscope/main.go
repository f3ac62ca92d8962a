package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rosscope",
		Short: "ROS 2 runtime observability and control engine",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the engine and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return startEngine(ctx, cancel, configPath)
		},
	}

	rootCmd.AddCommand(startCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

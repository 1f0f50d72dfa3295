package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envName   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "clima",
	Short: "City weather ingestion service",
	Long: `clima consumes batches of city queries from Kafka or RabbitMQ, fetches
current conditions from OpenWeatherMap, and keeps the latest temperature per
city in the configured store. It can also be invoked directly over HTTP or
from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The profile is resolved from ENVIRONMENT at config load.
		if envName != "" {
			return os.Setenv("ENVIRONMENT", envName)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "deployment profile: dev, test or prod (overrides ENVIRONMENT)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format, text or json (overrides LOG_FORMAT)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

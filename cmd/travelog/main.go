// Package main is the entry point for the travelog server and CLI.
// Its sole responsibility is wiring dependencies together and running the
// chosen command. No business logic belongs here.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "travelog",
	Short: "Automatic trip journal built from location events and photos",
	Long: `travelog records trips from background location pings and geofence
transitions, classifies them into dwells and transit, and rebuilds past trips
from a geotagged photo library.

Configuration is read from an optional YAML file and the environment
(DATABASE_URL, LOG_LEVEL, TRACKER_MIN_PING_INTERVAL, ...).`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(parseCmd)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var parseUser string

func init() {
	parseCmd.Flags().StringVar(&parseUser, "user", "", "user whose unparsed trips are classified (required)")
	_ = parseCmd.MarkFlagRequired("user")
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Run the deferred classification pass for one user",
	Long: `Run the deferred classification pass over every trip of a user that still
has unparsed pings, and print the resulting counts as JSON.

Examples:
  travelog parse --user alice`,
	Args: cobra.NoArgs,
	RunE: runParse,
}

func runParse(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log, nil)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	report, err := a.parse.ParseUnparsedTrips(cmd.Context(), parseUser)
	if err != nil {
		return fmt.Errorf("parse %s: %w", parseUser, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

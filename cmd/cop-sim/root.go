package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	schemaPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cop-sim",
	Short: "Common operational picture simulator",
	Long: "cop-sim simulates a live operational picture (units, spectrum activity, incidents) " +
		"and serves it over an authenticated HTTP API with a command and acknowledgement channel.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML (empty for built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to an external CUE schema (default: embedded)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}

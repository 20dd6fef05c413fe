package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cop-sim/internal/logging"
	"cop-sim/internal/sim"
)

var (
	replayInput  string
	replaySpeed  float64
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded feed log",
	Long:  "replay reads a JSONL feed written with serve --log-file and re-emits it to the console and, if configured, GreptimeDB.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		output, err := resolveOutput(replayOutput, false)
		if err != nil {
			return err
		}
		logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: logOutput(output, isTerminal(os.Stderr))})

		writer, err := newWriters(cfg, output, "", logger)
		if err != nil {
			return err
		}
		defer writer.Close()
		return sim.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to feed log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 for no delay)")
	replayCmd.Flags().StringVar(&replayOutput, "output", outputJSON, "Console output: tui, color, json or none")
	_ = replayCmd.MarkFlagRequired("input")
}

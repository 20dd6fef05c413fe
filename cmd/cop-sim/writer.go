package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"cop-sim/internal/config"
	"cop-sim/internal/sim"
)

// Console output modes.
const (
	outputAuto  = "auto"
	outputTUI   = "tui"
	outputColor = "color"
	outputJSON  = "json"
	outputNone  = "none"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// resolveOutput maps the --output flag to a concrete mode. auto picks the
// TUI on a terminal and JSON lines otherwise.
func resolveOutput(output string, terminal bool) (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(output)); mode {
	case "", outputAuto:
		if terminal {
			return outputTUI, nil
		}
		return outputJSON, nil
	case outputTUI, outputColor, outputJSON, outputNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown output %q (want auto, tui, color, json or none)", output)
	}
}

// logOutput keeps log records off the alternate screen while the TUI runs.
func logOutput(output string, stderrTerminal bool) io.Writer {
	if output == outputTUI && stderrTerminal {
		return io.Discard
	}
	return os.Stderr
}

// consoleWriter returns the writer for a resolved output mode, nil for none.
func consoleWriter(cfg *config.SimulationConfig, output string) sim.FeedWriter {
	switch output {
	case outputTUI:
		return sim.NewTUIWriter(cfg)
	case outputColor:
		return sim.NewColorStdoutWriter(cfg)
	case outputJSON:
		return sim.NewJSONStdoutWriter()
	default:
		return nil
	}
}

// newWriters assembles the feed: console output, optional JSONL log file,
// the extra writers and, when an endpoint is configured, GreptimeDB.
// Closing the returned writer releases all of them.
func newWriters(cfg *config.SimulationConfig, output, logFile string, logger *slog.Logger, extra ...sim.FeedWriter) (*sim.MultiWriter, error) {
	mw := sim.NewMultiWriter()
	if w := consoleWriter(cfg, output); w != nil {
		mw.Add(w)
	}
	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile)
		if err != nil {
			_ = mw.Close()
			return nil, err
		}
		mw.Add(fw)
	}
	for _, w := range extra {
		mw.Add(w)
	}
	if cfg.Greptime.Endpoint != "" {
		gw, err := sim.NewGreptimeDBWriter(cfg.Greptime.Endpoint, cfg.Greptime.Port, cfg.Greptime.Database, logger)
		if err != nil {
			_ = mw.Close()
			return nil, fmt.Errorf("init greptimedb writer: %w", err)
		}
		// last, so local writers are not delayed by a slow database
		mw.Add(gw)
	}
	return mw, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cop-sim/internal/api"
	"cop-sim/internal/config"
	"cop-sim/internal/cop"
	"cop-sim/internal/logging"
	"cop-sim/internal/sim"
)

var (
	serveAddr    string
	serveOutput  string
	serveLogFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator and its HTTP API",
	Long:  "serve seeds the operational picture, starts the drift, spectrum and incident routines and serves the API until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		output, err := resolveOutput(serveOutput, isTerminal(os.Stdout))
		if err != nil {
			return err
		}

		logger := logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: logOutput(output, isTerminal(os.Stderr)),
		})
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(logging.NewContext(ctx, logger), cfg, output, serveLogFile)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address override (e.g. :8080)")
	serveCmd.Flags().StringVar(&serveOutput, "output", outputAuto, "Console output: auto, tui, color, json or none")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export the feed as JSONL for replay")
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.SimulationConfig, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	overridden := false
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Addr = serveAddr
		overridden = true
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
		overridden = true
	}
	if overridden {
		if err := config.ValidateWithCue(cfg, schemaPath); err != nil {
			return nil, fmt.Errorf("validate flags: %w", err)
		}
	}
	return cfg, nil
}

// serve runs the simulator until ctx is cancelled.
func serve(ctx context.Context, cfg *config.SimulationConfig, output, logFile string) error {
	logger := logging.FromContext(ctx)

	hub := api.NewHub(logger)
	feed, err := newWriters(cfg, output, logFile, logger, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logger.Warn("closing feed writers", "err", err)
		}
	}()

	area := cop.Area{MinLat: cfg.Area.MinLat, MinLon: cfg.Area.MinLon, SpanDeg: cfg.Area.SpanDeg}
	store := cop.NewStore(cop.NewGenerator(nil, area, cfg.DriftScale))

	auth, err := api.NewAuthenticator(cfg.Users, cfg.Server.BcryptCost)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	desk := sim.NewCommandDesk(store, feed, logger)
	feed.SetCommander(desk)

	server := api.NewServer(store, desk, hub, auth, api.Options{
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:             logger,
	})
	httpSvc := api.NewHTTPService(cfg.Server.Addr, server.Handler(), cfg.Server.ShutdownTimeout, logger)
	httpSvc.Status = feed.SetAPIStatus

	sched := sim.NewScheduler(store, feed, sim.Intervals{
		UnitDrift:       cfg.Intervals.UnitDrift,
		SpectrumRefresh: cfg.Intervals.SpectrumRefresh,
		IncidentSpawn:   cfg.Intervals.IncidentSpawn,
	}, logger)
	sched.Add(hub)
	sched.Add(httpSvc)

	// seed state is published once so writers start with a full picture
	if err := feed.WriteUnits(store.ListUnits()); err != nil {
		logger.Warn("initial units write failed", "err", err)
	}
	if err := feed.WriteSpectrum(store.ListSpectrumActivity()); err != nil {
		logger.Warn("initial spectrum write failed", "err", err)
	}

	logger.Info("cop simulator started",
		"addr", cfg.Server.Addr,
		"output", output,
		"writers", feed.Len(),
		"greptime", cfg.Greptime.Endpoint != "")

	err = sched.Serve(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		// shutdown was requested
		err = nil
	}
	logger.Info("cop simulator stopped")
	return err
}

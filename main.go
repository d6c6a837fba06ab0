package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"double-auction/src/config"
	"double-auction/src/engine"
	"double-auction/src/logger"
	"double-auction/src/metrics"
	"double-auction/src/replay"
	"double-auction/src/stats"
	"double-auction/src/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", "", "path to a .env file (default ./.env if present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		return 2
	}

	logger.InitLogger(cfg)
	defer logger.CloseLogger()

	runID := uuid.New().String()
	log := logger.ForRun(runID)

	log.Info().
		Str("input", cfg.Replay.Input).
		Int("window", cfg.Engine.Window).
		Int64("write_interval", cfg.Replay.WriteInterval).
		Bool("check_invariants", cfg.Engine.CheckInvariants).
		Msg("Initializing double auction replay")

	sinks := store.MultiSink{}
	if cfg.Output.CSVDir != "" {
		csvSink, err := store.NewCSVSink(cfg.Output.CSVDir, runID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open CSV sink")
			return 1
		}
		sinks = append(sinks, csvSink)
	}
	if cfg.Output.PebbleDir != "" {
		pebbleSink, err := store.OpenPebbleSink(cfg.Output.PebbleDir, runID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open pebble sink")
			_ = sinks.Close()
			return 1
		}
		sinks = append(sinks, pebbleSink)
	}

	in, err := os.Open(cfg.Replay.Input)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open input")
		_ = sinks.Close()
		return 1
	}
	defer in.Close()

	eng := engine.NewMatchingEngine(engine.Options{
		Logger:          log.With().Str("component", "engine").Logger(),
		CheckInvariants: cfg.Engine.CheckInvariants,
	})
	m := metrics.New()

	runner := &replay.Runner{
		Engine:        eng,
		Tracker:       stats.NewTracker(eng.Book(), cfg.Engine.Window),
		Sink:          sinks,
		Metrics:       m,
		Log:           log,
		WriteInterval: cfg.Replay.WriteInterval,
		Prime:         cfg.Engine.PrimeSamples,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	summary, runErr := runner.Run(ctx, in)

	if err := sinks.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing sinks")
	}
	if cfg.Output.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Error().Err(err).Str("path", cfg.Output.MetricsFile).Msg("Failed to write metrics")
		}
	}

	ev := log.Info()
	if summary.TopOfBook != nil {
		ev = ev.Int64("best_bid", summary.TopOfBook.BestBid).Int64("best_ask", summary.TopOfBook.BestAsk)
	}
	ev.Int("events", summary.Events).
		Int("rejected", summary.Rejected).
		Int("trades", summary.Trades).
		Int64("steps", summary.Steps).
		Float64("volatility", summary.Volatility).
		Msg("Replay summary")

	switch {
	case runErr == nil:
		log.Info().Msg("Shutdown complete")
		return 0
	case errors.Is(runErr, context.Canceled):
		log.Warn().Msg("Received shutdown signal, output flushed")
		return 0
	case errors.Is(runErr, engine.ErrBookInvariant):
		log.Error().Err(runErr).Msg("Engine halted on corrupted book")
		return 3
	default:
		log.Error().Err(runErr).Msg("Replay failed")
		return 1
	}
}

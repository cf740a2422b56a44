// Package main runs a one-off historical backfill.
//
// The date range comes from FITBIT_BACKFILL_START_DATE/END_DATE or the
// -start/-end flags. Each endpoint class is partitioned into windows within
// the API limits and flushed after every window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/rafaeljc/fitbit-ingest/internal/app"
	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		start        = flag.String("start", "", "first day to fetch (YYYY-MM-DD)")
		end          = flag.String("end", "", "last day to fetch, inclusive (YYYY-MM-DD)")
		refreshToken = flag.String("refresh-token", "", "initial OAuth refresh token, used only when no credential is stored")
		dryRun       = flag.Bool("dry-run", false, "fetch and parse without writing to InfluxDB")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *start != "" {
		cfg.Backfill.StartDate = *start
	}
	if *end != "" {
		cfg.Backfill.EndDate = *end
	}

	r, err := window.ParseDateRange(cfg.Backfill.StartDate, cfg.Backfill.EndDate)
	if err != nil {
		return fmt.Errorf("invalid backfill range: %w", err)
	}

	log, closeLog, err := logger.Open(&cfg.App)
	if err != nil {
		return err
	}
	defer closeLog.Close()
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	rt, err := app.Build(ctx, cfg, log, app.Options{
		RefreshToken: *refreshToken,
		Prompt:       app.InteractiveStdin(),
		DryRun:       *dryRun,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info("starting backfill",
		slog.String("range", r.String()),
		slog.Int("days", r.Days()),
		slog.Bool("dry_run", *dryRun),
	)

	if err := rt.Engine.Backfill(ctx, r); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("backfill interrupted")
			return nil
		}
		return fmt.Errorf("backfill failed: %w", err)
	}

	if mem, ok := rt.Sink.(*timeseries.MemorySink); ok {
		log.Info("dry run finished", slog.Int("points", len(mem.Points())))
	}
	log.Info("backfill complete")
	return nil
}

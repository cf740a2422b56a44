// Package main runs the continuous Fitbit ingest service.
//
// It performs one pass over the rolling date range at startup, then hands
// control to the cadence scheduler until SIGINT or SIGTERM.
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

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/fitbit-ingest/internal/app"
	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/ingest"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
	"github.com/rafaeljc/fitbit-ingest/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	refreshToken := flag.String("refresh-token", "", "initial OAuth refresh token, used only when no credential is stored")
	flag.Parse()

	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
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

	// -------------------------------------------------------------------------
	// 2. Wiring
	// -------------------------------------------------------------------------
	rt, err := app.Build(ctx, cfg, log, app.Options{
		RefreshToken: *refreshToken,
		Prompt:       app.InteractiveStdin(),
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	clk := clock.New()
	state := ingest.NewRangeState(clk.Now(), rt.Location, cfg.Scheduler.RollingDays)

	sched := scheduler.New(log, scheduler.Config{
		Tick:            cfg.Scheduler.Tick,
		ShutdownTimeout: cfg.App.ShutdownTimeout,
	},
		scheduler.FlushFunc(rt.Engine.Flush),
		scheduler.WithClock(clk),
		scheduler.WithBeforeTick(ingest.AdvanceRange(state)),
	)
	if err := rt.Engine.Register(sched, state, &cfg.Scheduler); err != nil {
		return err
	}

	// -------------------------------------------------------------------------
	// 3. Startup pass
	// -------------------------------------------------------------------------
	if cfg.Scheduler.RunOnStart {
		log.Info("starting initial pass", slog.String("range", state.Current().String()))
		if err := rt.Engine.RunOnce(ctx, state); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("initial pass failed: %w", err)
		}
	}

	// -------------------------------------------------------------------------
	// 4. Run loop and ops server
	// -------------------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Observability.Enabled {
		srv := observability.NewServer(log, &cfg.Observability,
			func() any { return sched.Snapshot() },
			rt.Checkers...,
		).WithShutdownTimeout(cfg.App.ShutdownTimeout)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	g.Go(func() error { return sched.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("service exited successfully")
	return nil
}

package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

// Backfill fetches r class by class: recent activities, the SpO2 summary, then
// the activity, sleep and daily windows, then every day's intraday series.
// The batch is flushed after each window so a long run never holds more than
// one window in memory, and the token is refreshed between windows once
// TokenRefreshInterval has passed.
func (e *Engine) Backfill(ctx context.Context, r window.DateRange) error {
	ctx = logger.WithContext(ctx, e.logger.With(slog.String("backfill", r.String())))
	log := logger.FromContext(ctx)
	start := time.Now()
	log.Info("backfill started", slog.Int("days", r.Days()))

	type unit struct {
		name string
		w    window.FetchWindow
		run  func(ctx context.Context) error
	}

	var units []unit
	for w := range window.Partition(r, window.Unbounded) {
		units = append(units,
			unit{TaskRecentActivities, w, func(ctx context.Context) error { return e.FetchRecentActivities(ctx, w.End()) }},
			unit{TaskSummary, w, func(ctx context.Context) error { return e.FetchSummary(ctx, w.Range()) }},
		)
	}
	for w := range e.config.Activity.Windows(r) {
		units = append(units, unit{TaskActivity, w, func(ctx context.Context) error { return e.FetchActivity(ctx, w.Range()) }})
	}
	for w := range e.config.Sleep.Windows(r) {
		units = append(units, unit{TaskSleep, w, func(ctx context.Context) error { return e.FetchSleep(ctx, w.Range()) }})
	}
	for w := range e.config.Daily.Windows(r) {
		units = append(units, unit{TaskDaily, w, func(ctx context.Context) error { return e.FetchDaily(ctx, w.Range()) }})
	}
	for w := range window.ClassIntraday.Windows(r) {
		units = append(units, unit{"intraday", w, func(ctx context.Context) error { return e.FetchIntraday(ctx, w.Start()) }})
	}

	incomplete := 0
	for i, u := range units {
		if err := e.refreshIfDue(ctx); err != nil {
			return err
		}

		unitCtx, _ := logger.WithCycle(logger.WithContext(ctx, log.With(
			slog.String("class", u.name),
			slog.String("window", u.w.String()),
		)))
		err := u.run(unitCtx)
		if flushErr := e.Flush(context.WithoutCancel(unitCtx)); flushErr != nil {
			logger.FromContext(unitCtx).Error("window flush failed", slog.Any("error", flushErr))
		}
		if err != nil {
			if stop(ctx, err) {
				return err
			}
			incomplete++
			logger.FromContext(unitCtx).Warn("window incomplete", slog.Any("error", err))
		}
		logger.FromContext(unitCtx).Debug("window done", slog.Int("done", i+1), slog.Int("total", len(units)))
	}

	log.Info("backfill complete",
		slog.Int("windows", len(units)),
		slog.Int("incomplete", incomplete),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (e *Engine) refreshIfDue(ctx context.Context) error {
	if e.config.TokenRefreshInterval <= 0 {
		return nil
	}
	if e.clock.Now().Sub(e.lastRefresh) < e.config.TokenRefreshInterval {
		return nil
	}
	err := e.RefreshToken(ctx)
	if err != nil && !stop(ctx, err) {
		// The executor recovers from an expired token on the next 401.
		logger.FromContext(ctx).Warn("scheduled token refresh failed", slog.Any("error", err))
		return nil
	}
	return err
}

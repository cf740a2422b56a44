package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/scheduler"
)

// Task names as they appear in logs, metrics and /status.
const (
	TaskTokenRefresh      = "token_refresh"
	TaskIntradayToday     = "intraday_today"
	TaskIntradayYesterday = "intraday_yesterday"
	TaskBattery           = "battery"
	TaskDaily             = "daily"
	TaskSleep             = "sleep"
	TaskActivity          = "activity"
	TaskSummary           = "spo2_summary"
	TaskRecentActivities  = "recent_activities"
)

// Register adds the continuous tasks to s. Every task reads its dates from
// state when it runs.
func (e *Engine) Register(s *scheduler.Scheduler, state *RangeState, cfg *config.SchedulerConfig) error {
	tasks := []struct {
		name     string
		interval time.Duration
		action   scheduler.Action
	}{
		{TaskTokenRefresh, cfg.TokenRefreshInterval, e.RefreshToken},
		{TaskIntradayToday, cfg.IntradayInterval, func(ctx context.Context) error {
			return e.FetchIntraday(ctx, state.Today())
		}},
		// Trackers often sync the end of the night late; refill the previous day.
		{TaskIntradayYesterday, cfg.IntradayRefillInterval, func(ctx context.Context) error {
			return e.FetchIntraday(ctx, state.Yesterday())
		}},
		{TaskBattery, cfg.BatteryInterval, e.FetchBattery},
		{TaskDaily, cfg.DailyInterval, func(ctx context.Context) error {
			return e.FetchDaily(ctx, state.Current())
		}},
		{TaskSleep, cfg.SleepInterval, func(ctx context.Context) error {
			return e.FetchSleep(ctx, state.Current())
		}},
		{TaskActivity, cfg.ActivityInterval, func(ctx context.Context) error {
			return e.FetchActivity(ctx, state.Current())
		}},
		{TaskSummary, cfg.SummaryInterval, func(ctx context.Context) error {
			return e.FetchSummary(ctx, state.Current())
		}},
		{TaskRecentActivities, cfg.RecentActivitiesInterval, func(ctx context.Context) error {
			return e.FetchRecentActivities(ctx, state.Today())
		}},
	}

	for _, t := range tasks {
		if err := s.Register(t.name, t.interval, t.action); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceRange returns a scheduler hook that moves state to the current date.
func AdvanceRange(state *RangeState) scheduler.BeforeTick {
	return func(ctx context.Context, now time.Time) {
		if r, changed := state.Advance(now); changed {
			logger.FromContext(ctx).Info("rolling range advanced", slog.String("range", r.String()))
		}
	}
}

// RunOnce performs the startup pass over state's range: intraday per day,
// then every windowed class, the battery and the recent activities, and
// finally one flush. Only fatal errors and cancellation are returned.
func (e *Engine) RunOnce(ctx context.Context, state *RangeState) error {
	ctx, _ = logger.WithCycle(logger.WithContext(ctx, e.logger))
	log := logger.FromContext(ctx)

	r := state.Current()
	if days := r.Days(); days > 3 {
		log.Warn("startup range spans many days and may exhaust the hourly quota", slog.Int("days", days))
	}
	log.Info("startup pass", slog.String("range", r.String()))

	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"intraday", func(ctx context.Context) error {
			var errs []error
			for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
				if err := e.FetchIntraday(ctx, day); err != nil {
					if stop(ctx, err) {
						return err
					}
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}},
		{TaskDaily, func(ctx context.Context) error { return e.FetchDaily(ctx, r) }},
		{TaskSleep, func(ctx context.Context) error { return e.FetchSleep(ctx, r) }},
		{TaskActivity, func(ctx context.Context) error { return e.FetchActivity(ctx, r) }},
		{TaskSummary, func(ctx context.Context) error { return e.FetchSummary(ctx, r) }},
		{TaskBattery, e.FetchBattery},
		{TaskRecentActivities, func(ctx context.Context) error { return e.FetchRecentActivities(ctx, r.End) }},
	}

	defer func() {
		if err := e.Flush(context.WithoutCancel(ctx)); err != nil {
			log.Error("startup flush failed", slog.Any("error", err))
		}
	}()

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			if stop(ctx, err) {
				return err
			}
			log.Warn("startup step incomplete", slog.String("step", step.name), slog.Any("error", err))
		}
	}
	return nil
}

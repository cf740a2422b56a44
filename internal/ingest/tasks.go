package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/fitbit"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/parser"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

// intradaySeries are the detail series fetched one day at a time.
var intradaySeries = []struct {
	resource    string
	measurement string
}{
	{fitbit.ResourceHeart, parser.MeasurementHeartRateIntraday},
	{fitbit.ResourceSteps, parser.MeasurementStepsIntraday},
}

// FetchIntraday collects the heart rate and step detail series of day.
func (e *Engine) FetchIntraday(ctx context.Context, day time.Time) error {
	return e.collect(ctx, e.intradayFetches(day)...)
}

func (e *Engine) intradayFetches(day time.Time) []fetch {
	opt := e.parseOptions()
	fetches := make([]fetch, 0, len(intradaySeries))
	for _, s := range intradaySeries {
		fetches = append(fetches, fetch{
			req: e.endpoints.Intraday(s.resource, day),
			parse: func(body []byte) ([]timeseries.Point, error) {
				return parser.Intraday(body, s.resource, s.measurement, day, opt)
			},
		})
	}
	return fetches
}

// FetchDaily collects HRV, breathing rate, skin temperature, intraday SpO2
// and weight over r.
func (e *Engine) FetchDaily(ctx context.Context, r window.DateRange) error {
	return e.eachWindow(ctx, e.config.Daily, r, e.dailyFetches)
}

func (e *Engine) dailyFetches(w window.FetchWindow) []fetch {
	opt := e.parseOptions()
	return []fetch{
		{e.endpoints.HRV(w), withOptions(parser.HRV, opt)},
		{e.endpoints.BreathingRate(w), withOptions(parser.BreathingRate, opt)},
		{e.endpoints.SkinTemperature(w), withOptions(parser.SkinTemperature, opt)},
		{e.endpoints.SpO2Intraday(w), withOptions(parser.SpO2Intraday, opt)},
		{e.endpoints.Weight(w), withOptions(parser.Weight, opt)},
	}
}

// FetchSleep collects sleep summaries and levels over r.
func (e *Engine) FetchSleep(ctx context.Context, r window.DateRange) error {
	return e.eachWindow(ctx, e.config.Sleep, r, e.sleepFetches)
}

func (e *Engine) sleepFetches(w window.FetchWindow) []fetch {
	return []fetch{{e.endpoints.Sleep(w), withOptions(parser.Sleep, e.parseOptions())}}
}

// FetchActivity collects activity minutes, daily totals, heart rate zones and
// resting heart rate over r.
func (e *Engine) FetchActivity(ctx context.Context, r window.DateRange) error {
	return e.eachWindow(ctx, e.config.Activity, r, e.activityFetches)
}

func (e *Engine) activityFetches(w window.FetchWindow) []fetch {
	opt := e.parseOptions()
	fetches := make([]fetch, 0, len(fitbit.ActivityMinuteResources)+len(fitbit.TrackerTotals)+1)
	for _, resource := range fitbit.ActivityMinuteResources {
		fetches = append(fetches, fetch{
			req: e.endpoints.ActivityMinutes(resource, w),
			parse: func(body []byte) ([]timeseries.Point, error) {
				return parser.ActivityMinutes(body, resource, opt)
			},
		})
	}
	for _, total := range fitbit.TrackerTotals {
		fetches = append(fetches, fetch{
			req: e.endpoints.TrackerTotal(total.Resource, w),
			parse: func(body []byte) ([]timeseries.Point, error) {
				return parser.TrackerTotal(body, total.Resource, total.Measurement, opt)
			},
		})
	}
	return append(fetches, fetch{e.endpoints.HeartSummary(w), withOptions(parser.HeartSummary, opt)})
}

// FetchSummary collects the SpO2 nightly summary over r in a single request.
func (e *Engine) FetchSummary(ctx context.Context, r window.DateRange) error {
	return e.eachWindow(ctx, window.ClassSummary, r, e.summaryFetches)
}

func (e *Engine) summaryFetches(w window.FetchWindow) []fetch {
	return []fetch{{e.endpoints.SpO2Summary(w), withOptions(parser.SpO2Summary, e.parseOptions())}}
}

// FetchBattery collects the battery level of the first paired device.
func (e *Engine) FetchBattery(ctx context.Context) error {
	return e.collect(ctx, fetch{e.endpoints.Devices(), withOptions(parser.Battery, e.parseOptions())})
}

// FetchRecentActivities collects the latest logged activities up to end and
// the GPS tracks of those not downloaded before, at most TCXLimit per call.
func (e *Engine) FetchRecentActivities(ctx context.Context, end time.Time) error {
	log := logger.FromContext(ctx)
	opt := e.parseOptions()

	var activities []parser.Activity
	list := fetch{
		req: e.endpoints.RecentActivities(end),
		parse: func(body []byte) ([]timeseries.Point, error) {
			acts, points, err := parser.RecentActivities(body, opt)
			activities = acts
			return points, err
		},
	}
	if err := e.collect(ctx, list); err != nil {
		return err
	}

	var errs []error
	downloads := 0
	for _, a := range activities {
		if !a.HasGPS || a.TCXLink == "" {
			continue
		}
		if downloads >= e.config.TCXLimit {
			log.Debug("gps track limit reached", slog.Int("limit", e.config.TCXLimit))
			break
		}
		if e.activities != nil && e.activities.Seen(a.ID) {
			continue
		}

		downloads++
		id := a.ID
		err := e.collect(ctx, fetch{
			req: e.endpoints.TCX(a.TCXLink),
			parse: func(body []byte) ([]timeseries.Point, error) {
				return parser.TCX(body, id)
			},
		})
		if err != nil {
			if stop(ctx, err) {
				return err
			}
			errs = append(errs, err)
			continue
		}
		if e.activities != nil {
			e.activities.MarkSeen(a.ID)
		}
		log.Info("gps track recorded", slog.String("activity", a.ID))
	}
	return errors.Join(errs...)
}

// eachWindow partitions r with the class stride and collects every window.
func (e *Engine) eachWindow(ctx context.Context, class window.Class, r window.DateRange, build func(window.FetchWindow) []fetch) error {
	var errs []error
	for w := range class.Windows(r) {
		if err := e.collect(ctx, build(w)...); err != nil {
			if stop(ctx, err) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withOptions(parse func([]byte, parser.Options) ([]timeseries.Point, error), opt parser.Options) parseFunc {
	return func(body []byte) ([]timeseries.Point, error) {
		return parse(body, opt)
	}
}

// Package ingest drives the Fitbit fetches: it turns date ranges into
// windowed requests per endpoint class, parses the payloads into the shared
// batch and flushes the batch to the sink.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/cache"
	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/fitbit"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/parser"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
	"github.com/rafaeljc/fitbit-ingest/internal/token"
	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

// Fetcher performs API requests. *fitbit.Executor implements it.
type Fetcher interface {
	Execute(ctx context.Context, req fitbit.Request) (*fitbit.Payload, error)
}

// Refresher renews the OAuth credential. *token.Manager implements it.
type Refresher interface {
	Refresh(ctx context.Context) (token.Credential, error)
}

// Config holds what the fetch tasks need to know about the user and the API.
type Config struct {
	BaseURL  string
	Device   string
	Location *time.Location
	// TCXLimit caps GPS track downloads per recent-activities pass.
	TCXLimit int
	// TokenRefreshInterval paces proactive refreshes during a backfill.
	TokenRefreshInterval time.Duration

	Daily    window.Class
	Sleep    window.Class
	Activity window.Class
}

// ConfigFrom builds the engine configuration from the application config and
// the resolved user timezone.
func ConfigFrom(cfg *config.Config, loc *time.Location) (Config, error) {
	daily, err := window.ClassDaily.WithChunk(cfg.Window.DailyDays)
	if err != nil {
		return Config{}, err
	}
	sleep, err := window.ClassSleep.WithChunk(cfg.Window.SleepDays)
	if err != nil {
		return Config{}, err
	}
	activity, err := window.ClassActivity.WithChunk(cfg.Window.ActivityDays)
	if err != nil {
		return Config{}, err
	}

	return Config{
		BaseURL:              cfg.API.BaseURL,
		Device:               cfg.API.DeviceName,
		Location:             loc,
		TCXLimit:             cfg.API.TCXLimit,
		TokenRefreshInterval: cfg.Scheduler.TokenRefreshInterval,
		Daily:                daily,
		Sleep:                sleep,
		Activity:             activity,
	}, nil
}

// Engine owns the record batch. All methods must be called from one goroutine.
type Engine struct {
	logger     *slog.Logger
	config     Config
	fetcher    Fetcher
	tokens     Refresher
	sink       timeseries.Sink
	endpoints  fitbit.Endpoints
	batch      *timeseries.Batch
	clock      clock.Clock
	activities *cache.ActivityCache

	lastRefresh time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to pace backfill token refreshes.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithActivityCache remembers which GPS tracks were already downloaded.
func WithActivityCache(c *cache.ActivityCache) Option {
	return func(e *Engine) { e.activities = c }
}

// New creates an Engine.
func New(logger *slog.Logger, cfg Config, fetcher Fetcher, tokens Refresher, sink timeseries.Sink, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		panic("ingest: fetcher cannot be nil")
	}
	if tokens == nil {
		panic("ingest: token refresher cannot be nil")
	}
	if sink == nil {
		panic("ingest: sink cannot be nil")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Daily.Name == "" {
		cfg.Daily = window.ClassDaily
	}
	if cfg.Sleep.Name == "" {
		cfg.Sleep = window.ClassSleep
	}
	if cfg.Activity.Name == "" {
		cfg.Activity = window.ClassActivity
	}

	e := &Engine{
		logger:    logger,
		config:    cfg,
		fetcher:   fetcher,
		tokens:    tokens,
		sink:      sink,
		endpoints: fitbit.NewEndpoints(cfg.BaseURL),
		batch:     timeseries.NewBatch(),
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lastRefresh = e.clock.Now()
	return e
}

// Flush hands the collected points to the sink. An empty batch is a no-op.
// The batch is drained before writing, so a failed write is not retried here.
func (e *Engine) Flush(ctx context.Context) error {
	if e.batch.Len() == 0 {
		return nil
	}
	points := e.batch.Drain()

	log := logger.FromContext(ctx)
	if err := e.sink.Write(ctx, points); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}
	log.Info("points written", slog.Int("points", len(points)))
	return nil
}

// RefreshToken renews the OAuth credential.
func (e *Engine) RefreshToken(ctx context.Context) error {
	if _, err := e.tokens.Refresh(ctx); err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}
	e.lastRefresh = e.clock.Now()
	logger.FromContext(ctx).Info("access token refreshed")
	return nil
}

func (e *Engine) parseOptions() parser.Options {
	return parser.Options{Device: e.config.Device, Location: e.config.Location}
}

type parseFunc func(body []byte) ([]timeseries.Point, error)

// fetch is one request and the parser for its payload.
type fetch struct {
	req   fitbit.Request
	parse parseFunc
}

// collect runs fetches in order, appending parsed points to the batch.
// Skipped requests and rejected payloads are logged and joined into the
// returned error; a fatal error or cancellation stops at once.
func (e *Engine) collect(ctx context.Context, fetches ...fetch) error {
	var errs []error
	for _, f := range fetches {
		if err := e.collectOne(ctx, f); err != nil {
			if stop(ctx, err) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) collectOne(ctx context.Context, f fetch) error {
	log := logger.FromContext(ctx).With(
		slog.String("request", f.req.Name),
		slog.String("url", f.req.FullURL()),
	)

	payload, err := e.fetcher.Execute(ctx, f.req)
	if err != nil {
		if !stop(ctx, err) {
			log.Warn("request produced no data", slog.Any("error", err))
		}
		return err
	}

	points, err := f.parse(payload.Body)
	if err != nil {
		log.Warn("payload rejected", slog.Any("error", err))
		return fitbit.NewParseError(f.req.Name, f.req.FullURL(), err)
	}

	e.batch.Append(points...)
	log.Debug("payload collected", slog.Int("points", len(points)))
	return nil
}

// stop reports whether err must end the current task.
func stop(ctx context.Context, err error) bool {
	return fitbit.IsFatal(err) || ctx.Err() != nil
}

// Package scheduler runs named tasks on fixed cadences from a single loop.
//
// Tasks run sequentially in registration order; a task never overlaps
// itself or another task. After every tick the Flusher hands the points
// collected during the tick to the sink.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
)

// defaultShutdownTimeout bounds the final flush when Config leaves it unset.
const defaultShutdownTimeout = 30 * time.Second

// Action is the work of one task execution.
type Action func(ctx context.Context) error

// Outcome classifies a task execution.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeSkipped means the action failed without a fatal error; the task
	// stays scheduled.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFatal   Outcome = "fatal"
)

// Flusher drains whatever the tick collected into durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushFunc adapts a function to Flusher.
type FlushFunc func(ctx context.Context) error

func (f FlushFunc) Flush(ctx context.Context) error { return f(ctx) }

// BeforeTick runs at the start of every tick, before any task.
type BeforeTick func(ctx context.Context, now time.Time)

// TaskStatus is a read-only view of a task.
type TaskStatus struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	NextDue     time.Time     `json:"next_due"`
	LastRun     time.Time     `json:"last_run"`
	LastOutcome Outcome       `json:"last_outcome,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	Runs        int           `json:"runs"`
}

type task struct {
	name     string
	interval time.Duration
	action   Action
	status   TaskStatus
}

// Config holds the loop settings.
type Config struct {
	Tick time.Duration
	// ShutdownTimeout bounds the flush performed after the loop is cancelled.
	ShutdownTimeout time.Duration
}

// Scheduler owns the registered tasks.
type Scheduler struct {
	logger     *slog.Logger
	config     Config
	flusher    Flusher
	clock      clock.Clock
	beforeTick BeforeTick

	// mu guards tasks and started. The loop is the only writer; Snapshot
	// readers run on the ops server goroutines.
	mu      sync.Mutex
	tasks   []*task
	started bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithBeforeTick installs a hook run at the start of every tick.
func WithBeforeTick(fn BeforeTick) Option { return func(s *Scheduler) { s.beforeTick = fn } }

// New creates a Scheduler flushing through flusher after every tick.
func New(logger *slog.Logger, cfg Config, flusher Flusher, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if flusher == nil {
		panic("scheduler: flusher cannot be nil")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Scheduler{
		logger:  logger,
		config:  cfg,
		flusher: flusher,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a task. Names must be unique and interval positive. Tasks
// registered after Start are first due one interval from now.
func (s *Scheduler) Register(name string, interval time.Duration, action Action) error {
	if name == "" {
		return errors.New("task name cannot be empty")
	}
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %s", name, interval)
	}
	if action == nil {
		return fmt.Errorf("task %s: action cannot be nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.name == name {
			return fmt.Errorf("task %s already registered", name)
		}
	}

	t := &task{
		name:     name,
		interval: interval,
		action:   action,
		status:   TaskStatus{Name: name, Interval: interval},
	}
	if s.started {
		t.status.NextDue = s.clock.Now().Add(interval)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start anchors every task's grid at now: each is first due at now+interval.
func (s *Scheduler) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		t.status.NextDue = now.Add(t.interval)
	}
	s.started = true
}

// RunPending runs one tick: the BeforeTick hook, every due task in
// registration order, then the flush. It returns the first fatal task error,
// after flushing what was collected.
func (s *Scheduler) RunPending(ctx context.Context) error {
	if !s.isStarted() {
		s.Start(s.clock.Now())
	}

	now := s.clock.Now()
	ctx, _ = logger.WithCycle(logger.WithContext(ctx, s.logger))

	if s.beforeTick != nil {
		s.beforeTick(ctx, now)
	}

	var fatal error
	for _, t := range s.due(now) {
		if err := s.execute(ctx, t, now); err != nil {
			fatal = err
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.flush(ctx)

	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// Run ticks until ctx is cancelled or a task fails fatally. Cancellation is a
// clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		slog.Duration("tick", s.config.Tick),
		slog.Int("tasks", len(s.Snapshot())),
	)

	if !s.isStarted() {
		s.Start(s.clock.Now())
	}

	for {
		if err := s.RunPending(ctx); err != nil {
			if ctx.Err() != nil {
				s.stop(ctx)
				return nil
			}
			return err
		}
		if err := s.clock.Sleep(ctx, s.config.Tick); err != nil {
			s.stop(ctx)
			return nil
		}
	}
}

// Snapshot returns a copy of every task's status in registration order.
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.status
	}
	return out
}

func (s *Scheduler) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) due(now time.Time) []*task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*task
	for _, t := range s.tasks {
		if !now.Before(t.status.NextDue) {
			due = append(due, t)
		}
	}
	return due
}

// execute runs one task and advances its grid. It returns the error only
// when it is fatal.
func (s *Scheduler) execute(ctx context.Context, t *task, now time.Time) error {
	log := logger.FromContext(ctx).With(slog.String("task", t.name))
	start := time.Now()

	err := t.action(logger.WithContext(ctx, log))

	elapsed := time.Since(start)
	outcome := classify(err)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Shutdown interrupted the task; it is neither skipped nor fatal.
		outcome = ""
	}

	s.mu.Lock()
	t.status.LastRun = now
	t.status.Runs++
	t.status.LastOutcome = outcome
	t.status.LastError = ""
	if err != nil {
		t.status.LastError = err.Error()
	}
	next := t.status.NextDue
	for !next.After(now) {
		next = next.Add(t.interval)
	}
	t.status.NextDue = next
	s.mu.Unlock()

	if outcome == "" {
		return nil
	}

	observability.TaskRunsTotal.WithLabelValues(t.name, string(outcome)).Inc()
	observability.TaskDuration.WithLabelValues(t.name).Observe(elapsed.Seconds())

	switch outcome {
	case OutcomeSucceeded:
		observability.TaskLastSuccess.WithLabelValues(t.name).SetToCurrentTime()
		log.Debug("task completed", slog.Duration("duration", elapsed))
	case OutcomeSkipped:
		log.Warn("task completed with errors",
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
	case OutcomeFatal:
		log.Error("task failed fatally", slog.Any("error", err))
		return fmt.Errorf("task %s: %w", t.name, err)
	}
	return nil
}

func (s *Scheduler) flush(ctx context.Context) {
	if ctx.Err() != nil {
		// Left for the final flush on a context that outlives the cancellation.
		return
	}
	if err := s.flusher.Flush(ctx); err != nil {
		logger.FromContext(ctx).Error("flush failed", slog.Any("error", err))
	}
}

func (s *Scheduler) stop(ctx context.Context) {
	s.logger.Info("scheduler stopping, flushing collected points")

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.flusher.Flush(flushCtx); err != nil {
		s.logger.Error("final flush failed", slog.Any("error", err))
	}
}

// classify maps an action result to its outcome. Errors that declare
// themselves fatal stop the loop; anything else skips this run only.
func classify(err error) Outcome {
	if err == nil {
		return OutcomeSucceeded
	}
	var f interface{ Fatal() bool }
	if errors.As(err, &f) && f.Fatal() {
		return OutcomeFatal
	}
	return OutcomeSkipped
}

package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/scheduler"
	"github.com/rafaeljc/fitbit-ingest/internal/testsupport"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type fatalError struct{ msg string }

func (e *fatalError) Error() string { return e.msg }
func (e *fatalError) Fatal() bool   { return true }

// recordingFlusher counts flushes and remembers whether each saw a live context.
type recordingFlusher struct {
	mu       sync.Mutex
	calls    int
	liveCtxs int
	err      error
}

func (f *recordingFlusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if ctx.Err() == nil {
		f.liveCtxs++
	}
	return f.err
}

func (f *recordingFlusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(flusher scheduler.Flusher, opts ...scheduler.Option) (*scheduler.Scheduler, *clock.Fake) {
	fake := clock.NewFake(t0)
	opts = append([]scheduler.Option{scheduler.WithClock(fake)}, opts...)
	return scheduler.New(discardLogger(), scheduler.Config{Tick: 30 * time.Second}, flusher, opts...), fake
}

func TestScheduler_FixedGrid(t *testing.T) {
	s, fake := newScheduler(&recordingFlusher{})

	var runs []time.Duration
	require.NoError(t, s.Register("intraday", 3*time.Minute, func(context.Context) error {
		runs = append(runs, fake.Now().Sub(t0))
		fake.Advance(2 * time.Minute) // slow execution must not shift the grid
		return nil
	}))
	s.Start(t0)

	ctx := context.Background()
	for i := 0; i < 20 && len(runs) < 3; i++ {
		fake.Advance(time.Minute)
		require.NoError(t, s.RunPending(ctx))
	}

	assert.Equal(t, []time.Duration{3 * time.Minute, 6 * time.Minute, 9 * time.Minute}, runs)
	assert.Equal(t, t0.Add(12*time.Minute), s.Snapshot()[0].NextDue)
}

func TestScheduler_SkipsMissedSlots(t *testing.T) {
	s, fake := newScheduler(&recordingFlusher{})

	runs := 0
	require.NoError(t, s.Register("battery", 20*time.Minute, func(context.Context) error {
		runs++
		return nil
	}))
	s.Start(t0)

	fake.Advance(65 * time.Minute)
	require.NoError(t, s.RunPending(context.Background()))
	require.NoError(t, s.RunPending(context.Background()))

	assert.Equal(t, 1, runs)
	assert.Equal(t, t0.Add(80*time.Minute), s.Snapshot()[0].NextDue)
}

func TestScheduler_RegistrationOrderAndHook(t *testing.T) {
	var order []string
	hook := func(_ context.Context, now time.Time) {
		order = append(order, "before@"+now.Sub(t0).String())
	}
	s, fake := newScheduler(&recordingFlusher{}, scheduler.WithBeforeTick(hook))

	for _, name := range []string{"token", "intraday", "battery"} {
		require.NoError(t, s.Register(name, time.Minute, func(context.Context) error {
			order = append(order, name)
			return nil
		}))
	}
	s.Start(t0)

	fake.Advance(time.Minute)
	require.NoError(t, s.RunPending(context.Background()))

	assert.Equal(t, []string{"before@1m0s", "token", "intraday", "battery"}, order)
}

func TestScheduler_FlushesEveryTick(t *testing.T) {
	flusher := &recordingFlusher{err: errors.New("influx down")}
	s, fake := newScheduler(flusher)
	require.NoError(t, s.Register("daily", time.Hour, func(context.Context) error { return nil }))
	s.Start(t0)

	for range 3 {
		fake.Advance(30 * time.Second)
		require.NoError(t, s.RunPending(context.Background()), "flush errors are logged, not returned")
	}
	assert.Equal(t, 3, flusher.count())
}

func TestScheduler_NonFatalErrorSkips(t *testing.T) {
	s, fake := newScheduler(&recordingFlusher{})
	require.NoError(t, s.Register("sleep", time.Minute, func(context.Context) error {
		return errors.New("request skipped")
	}))
	s.Start(t0)
	fake.Advance(time.Minute)

	testsupport.AssertMetricDelta(t, "fitbit_ingest_scheduler_task_runs_total",
		map[string]string{"task": "sleep", "outcome": "skipped"}, 1, func() {
			require.NoError(t, s.RunPending(context.Background()))
		})

	status := s.Snapshot()[0]
	assert.Equal(t, scheduler.OutcomeSkipped, status.LastOutcome)
	assert.Equal(t, "request skipped", status.LastError)
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, t0.Add(2*time.Minute), status.NextDue)
}

func TestScheduler_FatalErrorStopsAfterFlush(t *testing.T) {
	flusher := &recordingFlusher{}
	s, fake := newScheduler(flusher)

	laterRan := false
	require.NoError(t, s.Register("daily", time.Minute, func(context.Context) error {
		return &fatalError{msg: "refresh token revoked"}
	}))
	require.NoError(t, s.Register("battery", time.Minute, func(context.Context) error {
		laterRan = true
		return nil
	}))
	s.Start(t0)
	fake.Advance(time.Minute)

	err := s.RunPending(context.Background())
	require.Error(t, err)

	var fe *fatalError
	assert.ErrorAs(t, err, &fe)
	assert.ErrorContains(t, err, "task daily")
	assert.False(t, laterRan)
	assert.Equal(t, 1, flusher.count())
	assert.Equal(t, scheduler.OutcomeFatal, s.Snapshot()[0].LastOutcome)
}

func TestScheduler_RunReturnsFatal(t *testing.T) {
	flusher := &recordingFlusher{}
	s, _ := newScheduler(flusher)
	require.NoError(t, s.Register("daily", 30*time.Second, func(context.Context) error {
		return &fatalError{msg: "client fault"}
	}))

	err := s.Run(context.Background())
	var fe *fatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, flusher.count())
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	flusher := &recordingFlusher{}
	s, _ := newScheduler(flusher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	require.NoError(t, s.Register("intraday", 30*time.Second, func(context.Context) error {
		runs++
		if runs == 3 {
			cancel()
		}
		return nil
	}))

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 3, runs)
	assert.Equal(t, 4, flusher.count(), "three ticks plus the final flush")
	assert.Equal(t, 4, flusher.liveCtxs, "the final flush outlives the cancellation")
}

func TestScheduler_FinalFlushHonorsShutdownTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"configured", 5 * time.Second, 5 * time.Second},
		{"default", 0, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deadlines []time.Duration
			flusher := scheduler.FlushFunc(func(ctx context.Context) error {
				if d, ok := ctx.Deadline(); ok {
					deadlines = append(deadlines, time.Until(d))
				}
				return nil
			})

			fake := clock.NewFake(t0)
			s := scheduler.New(discardLogger(), scheduler.Config{Tick: 30 * time.Second, ShutdownTimeout: tt.timeout},
				flusher, scheduler.WithClock(fake))

			ctx, cancel := context.WithCancel(context.Background())
			require.NoError(t, s.Register("battery", 30*time.Second, func(context.Context) error {
				cancel()
				return nil
			}))

			require.NoError(t, s.Run(ctx))
			require.Len(t, deadlines, 1, "only the final flush carries a deadline")
			assert.InDelta(t, tt.want.Seconds(), deadlines[0].Seconds(), 1)
		})
	}
}

func TestScheduler_Register(t *testing.T) {
	s, fake := newScheduler(&recordingFlusher{})
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("a", time.Minute, noop))
	assert.Error(t, s.Register("a", time.Minute, noop), "duplicate name")
	assert.Error(t, s.Register("", time.Minute, noop), "empty name")
	assert.Error(t, s.Register("b", 0, noop), "zero interval")
	assert.Error(t, s.Register("c", time.Minute, nil), "nil action")

	s.Start(t0)
	fake.Advance(10 * time.Minute)
	require.NoError(t, s.Register("late", 5*time.Minute, noop))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, t0.Add(time.Minute), snap[0].NextDue)
	assert.Equal(t, t0.Add(15*time.Minute), snap[1].NextDue)
}

func TestNew_PanicsWithoutFlusher(t *testing.T) {
	assert.Panics(t, func() {
		scheduler.New(discardLogger(), scheduler.Config{}, nil)
	})
}

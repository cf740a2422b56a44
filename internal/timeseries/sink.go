package timeseries

import (
	"context"
	"sync"
)

// Sink persists a finite batch of points in one call.
type Sink interface {
	Write(ctx context.Context, points []Point) error
}

// MemorySink keeps every written point in memory. It is used by the backfill
// dry-run mode and by tests.
type MemorySink struct {
	mu     sync.Mutex
	points []Point
	writes int
	err    error
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends points, or returns the configured failure.
func (s *MemorySink) Write(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.points = append(s.points, points...)
	s.writes++
	return nil
}

// FailWith makes subsequent writes return err (nil restores success).
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Points returns a copy of everything written so far.
func (s *MemorySink) Points() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Writes returns the number of successful Write calls.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

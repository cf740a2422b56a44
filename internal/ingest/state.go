package ingest

import (
	"sync"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

// RangeState is the rolling date range the continuous tasks read. The
// scheduler advances it at the start of every tick, so every task of a tick
// sees the same range.
type RangeState struct {
	mu      sync.RWMutex
	loc     *time.Location
	days    int
	current window.DateRange
}

// NewRangeState returns a state covering days before now's local date up to
// and including it.
func NewRangeState(now time.Time, loc *time.Location, days int) *RangeState {
	if loc == nil {
		loc = time.UTC
	}
	return &RangeState{
		loc:     loc,
		days:    days,
		current: window.Trailing(now, loc, days),
	}
}

// Advance recomputes the range for now and reports whether it moved.
func (s *RangeState) Advance(now time.Time) (window.DateRange, bool) {
	next := window.Trailing(now, s.loc, s.days)

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := next != s.current
	s.current = next
	return next, changed
}

// Current returns the range.
func (s *RangeState) Current() window.DateRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Today returns the last date of the range.
func (s *RangeState) Today() time.Time {
	return s.Current().End
}

// Yesterday returns the day before Today.
func (s *RangeState) Yesterday() time.Time {
	return s.Today().AddDate(0, 0, -1)
}

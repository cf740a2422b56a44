// Package window models calendar date ranges and splits them into the
// sub-ranges ("fetch windows") each class of Fitbit endpoint accepts.
package window

import (
	"fmt"
	"iter"
	"time"
)

// DateLayout is the calendar date format used by the Fitbit Web API.
const DateLayout = "2006-01-02"

// Unbounded is the chunk size for endpoint classes without a maximum span.
// Partition yields the whole range as a single window.
const Unbounded = 0

const day = 24 * time.Hour

// DateRange is an inclusive range of calendar dates.
// Start and End are always midnight UTC and Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from two instants, keeping only their calendar dates
// (as seen in each instant's own location). Swapped bounds are put back in order.
func NewDateRange(start, end time.Time) DateRange {
	s, e := Date(start), Date(end)
	if e.Before(s) {
		s, e = e, s
	}
	return DateRange{Start: s, End: e}
}

// ParseDateRange parses two YYYY-MM-DD strings into a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return NewDateRange(s, e), nil
}

// Trailing returns the range covering the given number of days before now's date,
// up to and including now's date. now is interpreted in loc.
func Trailing(now time.Time, loc *time.Location, days int) DateRange {
	end := now.In(loc)
	return NewDateRange(end.AddDate(0, 0, -days), end)
}

// Date strips the clock from t, keeping its calendar date in t's location,
// and returns that date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/day) + 1
}

// String formats the range as "start..end".
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// FetchWindow is a date range that satisfies one endpoint class's maximum span.
// Values are only produced by Partition.
type FetchWindow struct {
	r DateRange
}

// Start returns the first date of the window.
func (w FetchWindow) Start() time.Time { return w.r.Start }

// End returns the last date of the window (inclusive).
func (w FetchWindow) End() time.Time { return w.r.End }

// StartDate returns Start formatted for the API.
func (w FetchWindow) StartDate() string { return w.r.Start.Format(DateLayout) }

// EndDate returns End formatted for the API.
func (w FetchWindow) EndDate() string { return w.r.End.Format(DateLayout) }

// Range returns the window as a plain DateRange.
func (w FetchWindow) Range() DateRange { return w.r }

// Days returns the number of calendar days in the window.
func (w FetchWindow) Days() int { return w.r.Days() }

// String formats the window like a DateRange.
func (w FetchWindow) String() string { return w.r.String() }

// Partition walks r in disjoint, inclusive strides of chunkDays calendar days.
// Each window is [s, min(s+chunkDays-1, r.End)] and the next one starts the day
// after. The last window may be shorter. With chunkDays <= 0 (Unbounded) the
// whole range is yielded as one window.
//
// The returned sequence holds no cursor: every range over it starts again from r.Start.
func Partition(r DateRange, chunkDays int) iter.Seq[FetchWindow] {
	r = NewDateRange(r.Start, r.End)

	return func(yield func(FetchWindow) bool) {
		if chunkDays <= Unbounded {
			yield(FetchWindow{r: r})
			return
		}

		for start := r.Start; !start.After(r.End); {
			end := start.AddDate(0, 0, chunkDays-1)
			if end.After(r.End) {
				end = r.End
			}
			if !yield(FetchWindow{r: DateRange{Start: start, End: end}}) {
				return
			}
			start = end.AddDate(0, 0, 1)
		}
	}
}

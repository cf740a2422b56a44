package window

import (
	"fmt"
	"iter"
)

// Class groups Fitbit endpoints that share the same maximum date span per request.
type Class struct {
	// Name identifies the class in logs and metrics.
	Name string
	// ChunkDays is the stride used when partitioning (Unbounded for no limit).
	ChunkDays int
	// MaxDays is the limit documented by the API (Unbounded for no limit).
	MaxDays int
}

// Endpoint classes. Default strides stay a little under the API maxima.
var (
	ClassIntraday = Class{Name: "intraday", ChunkDays: 1, MaxDays: 1}
	ClassDaily    = Class{Name: "daily-30d", ChunkDays: 28, MaxDays: 30}
	ClassSleep    = Class{Name: "sleep-100d", ChunkDays: 98, MaxDays: 100}
	ClassActivity = Class{Name: "activity-365d", ChunkDays: 360, MaxDays: 365}
	ClassSummary  = Class{Name: "summary", ChunkDays: Unbounded, MaxDays: Unbounded}
)

// WithChunk returns a copy of c using the given stride.
// It fails when the stride exceeds the class maximum.
func (c Class) WithChunk(days int) (Class, error) {
	if c.MaxDays != Unbounded && (days <= 0 || days > c.MaxDays) {
		return c, fmt.Errorf("%s chunk must be between 1 and %d days, got %d", c.Name, c.MaxDays, days)
	}
	c.ChunkDays = days
	return c, nil
}

// Windows partitions r with the class stride.
func (c Class) Windows(r DateRange) iter.Seq[FetchWindow] {
	return Partition(r, c.ChunkDays)
}

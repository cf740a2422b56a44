// Package timeseries holds the point model written to the time-series database,
// the per-cycle record batch, and the sinks that persist batches.
package timeseries

import (
	"maps"
	"time"
)

// Point is one timestamped measurement. Field values are int64, float64, string or nil.
// Points are treated as immutable once built by NewPoint.
type Point struct {
	Measurement string
	Time        time.Time
	Tags        map[string]string
	Fields      map[string]any
}

// NewPoint copies tags and fields and normalizes ts to UTC.
func NewPoint(measurement string, ts time.Time, tags map[string]string, fields map[string]any) Point {
	p := Point{
		Measurement: measurement,
		Time:        ts.UTC(),
		Tags:        map[string]string{},
		Fields:      map[string]any{},
	}
	maps.Copy(p.Tags, tags)
	maps.Copy(p.Fields, fields)
	return p
}

// LocalTime parses a wall-clock timestamp recorded in loc and returns it in UTC.
// layout follows time.Parse.
func LocalTime(layout, value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

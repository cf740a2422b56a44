// Package parser converts Fitbit Web API payloads into time-series points.
//
// Parsers are pure: they take the raw response body and return points with
// UTC timestamps. Wall-clock values reported by the API are interpreted in
// Options.Location.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

// ErrMissingField is wrapped when a payload lacks a key the parser requires.
var ErrMissingField = errors.New("missing field")

// Error reports a payload that could not be converted.
type Error struct {
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func missing(endpoint, field string) error {
	return &Error{Endpoint: endpoint, Err: fmt.Errorf("%w: %s", ErrMissingField, field)}
}

// Options carries what every parser needs besides the body.
type Options struct {
	// Device is written as the "Device" tag.
	Device string
	// Location is the user's timezone. Nil means UTC.
	Location *time.Location
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) deviceTags() map[string]string {
	return map[string]string{"Device": o.Device}
}

const (
	dateLayout  = "2006-01-02"
	localLayout = "2006-01-02T15:04:05"
)

// midnight returns the start of the local calendar day date in UTC.
func (o Options) midnight(endpoint, date string) (time.Time, error) {
	t, err := timeseries.LocalTime(dateLayout, date, o.loc())
	if err != nil {
		return time.Time{}, &Error{Endpoint: endpoint, Err: err}
	}
	return t, nil
}

// wallClock parses a local timestamp such as 2024-01-05T23:10:30.000.
func (o Options) wallClock(endpoint, value string) (time.Time, error) {
	t, err := timeseries.LocalTime(localLayout, value, o.loc())
	if err != nil {
		return time.Time{}, &Error{Endpoint: endpoint, Err: err}
	}
	return t, nil
}

// decodeKey unmarshals the top-level key of body into v.
func decodeKey(endpoint string, body []byte, key string, v any) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return &Error{Endpoint: endpoint, Err: err}
	}
	raw, ok := top[key]
	if !ok {
		return missing(endpoint, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("%s: %w", key, err)}
	}
	return nil
}

func decode(endpoint string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Endpoint: endpoint, Err: err}
	}
	return nil
}

// Number accepts JSON numbers, numeric strings and null.
// The tracker endpoints report values as strings.
type Number struct {
	value float64
	set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*n = Number{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = Number{value: f, set: true}
	return nil
}

// Valid reports whether a value was present.
func (n Number) Valid() bool { return n.set }

// Float returns the value as a field, or nil when absent.
func (n Number) Float() any {
	if !n.set {
		return nil
	}
	return n.value
}

// Int returns the value truncated to int64, or nil when absent.
func (n Number) Int() any {
	if !n.set {
		return nil
	}
	return int64(n.value)
}

// IntOr returns the value truncated to int64, or def when absent.
func (n Number) IntOr(def int64) int64 {
	if !n.set {
		return def
	}
	return int64(n.value)
}

package observability

import "context"

// Checker is a dependency reported by the readiness probe: the time-series
// sink, the credential store backends, or the OAuth credential itself.
// Implementations must be safe for concurrent use and honor ctx.
type Checker interface {
	// Name identifies the component in the probe body (e.g. "influxdb", "redis").
	Name() string
	// Check returns nil when the component is usable.
	Check(ctx context.Context) error
}

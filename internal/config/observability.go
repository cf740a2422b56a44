package config

import "time"

// ObservabilityConfig holds the ops server settings (metrics, probes, status).
type ObservabilityConfig struct {
	// Enabled turns the ops server on. Backfill runs usually leave it off.
	Enabled bool   `envconfig:"ENABLED" default:"true"`
	Port    string `envconfig:"PORT" default:"9090"`

	// Timeout bounds Read/Write/Idle on the ops server.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`

	// StatusPath serves the scheduler snapshot as JSON.
	StatusPath string `envconfig:"STATUS_PATH" default:"/status"`
}

// Validate checks ObservabilityConfig fields for correctness.
func (o *ObservabilityConfig) Validate() error {
	if !o.Enabled {
		return nil
	}
	return validatePort(o.Port, "observability")
}

package config

import (
	"fmt"
	"time"
)

// InfluxDB API versions.
const (
	InfluxV1 = "1"
	InfluxV2 = "2"
)

// InfluxConfig contains the time-series database connection. Version 1 servers
// are reached through the 1.8+ compatibility endpoints of the v2 client.
type InfluxConfig struct {
	Version string `envconfig:"VERSION" default:"2" validate:"oneof=1 2"`
	URL     string `envconfig:"URL" default:"http://localhost:8086"`

	// Version 2
	Token  string `envconfig:"TOKEN"`
	Org    string `envconfig:"ORG"`
	Bucket string `envconfig:"BUCKET" default:"fitbit"`

	// Version 1
	Username        string `envconfig:"USERNAME"`
	Password        string `envconfig:"PASSWORD"`
	Database        string `envconfig:"DATABASE" default:"fitbit"`
	RetentionPolicy string `envconfig:"RETENTION_POLICY"`

	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s" validate:"min=1s"`
}

// Validate checks version-specific settings.
func (c *InfluxConfig) Validate(environment string) error {
	if _, err := parseAndValidateURL(c.URL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid influx URL: %w", err)
	}

	switch c.Version {
	case InfluxV2:
		if c.Token == "" {
			return fmt.Errorf("influx token is required for version 2")
		}
		if err := validateNoWhitespace(c.Org, "influx org"); err != nil {
			return err
		}
		if err := validateNoWhitespace(c.Bucket, "influx bucket"); err != nil {
			return err
		}
	case InfluxV1:
		if err := validateNoWhitespace(c.Database, "influx database"); err != nil {
			return err
		}
		if environment == EnvironmentProduction && c.Username != "" && c.Password == "" {
			return fmt.Errorf("influx password is required in production environment")
		}
	}
	return nil
}

// AuthToken returns the token passed to the client. Version 1 servers accept
// "username:password" on the compatibility API.
func (c *InfluxConfig) AuthToken() string {
	if c.Version == InfluxV1 {
		if c.Username == "" {
			return ""
		}
		return c.Username + ":" + c.Password
	}
	return c.Token
}

// Organization returns the org, which version 1 ignores.
func (c *InfluxConfig) Organization() string {
	if c.Version == InfluxV1 {
		return ""
	}
	return c.Org
}

// BucketName returns the bucket, "database/retention-policy" for version 1.
func (c *InfluxConfig) BucketName() string {
	if c.Version == InfluxV1 {
		return c.Database + "/" + c.RetentionPolicy
	}
	return c.Bucket
}

// SpoolConfig controls the Redis-backed retry spool for failed batch writes.
type SpoolConfig struct {
	Enabled    bool   `envconfig:"ENABLED" default:"false"`
	Key        string `envconfig:"KEY" default:"fitbit:spool"`
	MaxBatches int64  `envconfig:"MAX_BATCHES" default:"1000" validate:"min=1"`
}

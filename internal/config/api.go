package config

import (
	"fmt"
	"time"
)

// TimezoneAutomatic resolves the local timezone from the Fitbit user profile.
const TimezoneAutomatic = "Automatic"

// APIConfig contains the Fitbit Web API client settings.
type APIConfig struct {
	// The application must be registered as "Personal" to read intraday series.
	ClientID     string `envconfig:"CLIENT_ID" validate:"required"`
	ClientSecret string `envconfig:"CLIENT_SECRET" validate:"required"`

	// InitialRefreshToken seeds the credential store on first run only.
	InitialRefreshToken string `envconfig:"INITIAL_REFRESH_TOKEN"`

	BaseURL  string `envconfig:"BASE_URL" default:"https://api.fitbit.com"`
	TokenURL string `envconfig:"TOKEN_URL" default:"https://api.fitbit.com/oauth2/token"`
	Language string `envconfig:"LANGUAGE" default:"en_US"`

	// DeviceName is written as the "Device" tag on every device-sourced point.
	DeviceName string `envconfig:"DEVICE_NAME" default:"Fitbit"`

	// Timezone is an IANA name, or "Automatic" to read it from the user profile.
	Timezone string `envconfig:"TIMEZONE" default:"Automatic"`

	// RequestsPerHour paces outgoing calls below the per-user quota (150/h).
	RequestsPerHour float64       `envconfig:"REQUESTS_PER_HOUR" default:"150" validate:"gt=0"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"min=1s"`

	// TCXLimit caps GPS track downloads per recent-activities pass.
	TCXLimit int `envconfig:"TCX_LIMIT" default:"10" validate:"min=0"`
}

// Validate checks URL and timezone settings.
func (c *APIConfig) Validate() error {
	if _, err := parseAndValidateURL(c.BaseURL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if _, err := parseAndValidateURL(c.TokenURL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid api token URL: %w", err)
	}
	if err := validateNoWhitespace(c.ClientID, "api client id"); err != nil {
		return err
	}
	if c.Timezone != TimezoneAutomatic {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid api timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// AutoTimezone reports whether the timezone must be read from the user profile.
func (c *APIConfig) AutoTimezone() bool {
	return c.Timezone == TimezoneAutomatic
}

// RetryConfig tunes the request executor's backoff policy.
type RetryConfig struct {
	// MaxAuthRetries bounds consecutive 401 responses before giving up.
	MaxAuthRetries int `envconfig:"MAX_AUTH_RETRIES" default:"5" validate:"min=0"`
	// MaxServerRetries bounds consecutive 5xx responses before skipping or aborting.
	MaxServerRetries  int  `envconfig:"MAX_SERVER_RETRIES" default:"3" validate:"min=0"`
	SkipOnServerError bool `envconfig:"SKIP_ON_SERVER_ERROR" default:"true"`

	RateLimitMargin time.Duration `envconfig:"RATE_LIMIT_MARGIN" default:"300s"`
	AuthCooldown    time.Duration `envconfig:"AUTH_COOLDOWN" default:"30s"`
	ServerCooldown  time.Duration `envconfig:"SERVER_COOLDOWN" default:"120s"`
	NetworkCooldown time.Duration `envconfig:"NETWORK_COOLDOWN" default:"30s"`
}

// SchedulerConfig contains the cadences of the continuous ingest loop.
type SchedulerConfig struct {
	Tick       time.Duration `envconfig:"TICK" default:"30s" validate:"min=1s"`
	RunOnStart bool          `envconfig:"RUN_ON_START" default:"true"`

	// RollingDays is how many days before today the rolling range reaches back.
	// Values above 2 risk exhausting the hourly quota.
	RollingDays int `envconfig:"ROLLING_DAYS" default:"1" validate:"min=0,max=7"`

	TokenRefreshInterval     time.Duration `envconfig:"TOKEN_REFRESH_INTERVAL" default:"1h" validate:"min=1m"`
	IntradayInterval         time.Duration `envconfig:"INTRADAY_INTERVAL" default:"3m" validate:"min=1m"`
	IntradayRefillInterval   time.Duration `envconfig:"INTRADAY_REFILL_INTERVAL" default:"1h" validate:"min=1m"`
	BatteryInterval          time.Duration `envconfig:"BATTERY_INTERVAL" default:"20m" validate:"min=1m"`
	DailyInterval            time.Duration `envconfig:"DAILY_INTERVAL" default:"3h" validate:"min=1m"`
	SleepInterval            time.Duration `envconfig:"SLEEP_INTERVAL" default:"4h" validate:"min=1m"`
	ActivityInterval         time.Duration `envconfig:"ACTIVITY_INTERVAL" default:"6h" validate:"min=1m"`
	SummaryInterval          time.Duration `envconfig:"SUMMARY_INTERVAL" default:"6h" validate:"min=1m"`
	RecentActivitiesInterval time.Duration `envconfig:"RECENT_ACTIVITIES_INTERVAL" default:"1h" validate:"min=1m"`
}

// WindowConfig holds the partition stride per endpoint class.
type WindowConfig struct {
	DailyDays    int `envconfig:"DAILY_DAYS" default:"28"`
	SleepDays    int `envconfig:"SLEEP_DAYS" default:"98"`
	ActivityDays int `envconfig:"ACTIVITY_DAYS" default:"360"`
}

// Validate checks the strides against the API maxima.
func (c *WindowConfig) Validate() error {
	checks := []struct {
		name     string
		value    int
		maxValue int
	}{
		{"daily", c.DailyDays, 30},
		{"sleep", c.SleepDays, 100},
		{"activity", c.ActivityDays, 365},
	}
	for _, chk := range checks {
		if chk.value < 1 || chk.value > chk.maxValue {
			return fmt.Errorf("window %s days must be between 1 and %d, got %d", chk.name, chk.maxValue, chk.value)
		}
	}
	return nil
}

// BackfillConfig contains the historical range for bulk mode.
type BackfillConfig struct {
	StartDate string `envconfig:"START_DATE"`
	EndDate   string `envconfig:"END_DATE"`
}

// Validate checks date formats when set.
func (c *BackfillConfig) Validate() error {
	for name, value := range map[string]string{"start": c.StartDate, "end": c.EndDate} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("backfill %s date must be YYYY-MM-DD: %w", name, err)
		}
	}
	return nil
}

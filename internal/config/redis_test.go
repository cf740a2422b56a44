package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisBackedConfig selects the redis token store so Redis settings are validated.
func redisBackedConfig(additional map[string]string) map[string]string {
	result := mergeEnvVars(map[string]string{
		"FITBIT_TOKEN_STORE_BACKEND": "redis",
		"FITBIT_REDIS_HOST":          "localhost",
		"FITBIT_REDIS_PORT":          "6379",
	})
	maps.Copy(result, additional)
	return result
}

func TestRedisConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should parse valid PingMaxRetries and PingBackoff",
			envVars: redisBackedConfig(map[string]string{
				"FITBIT_REDIS_PING_MAX_RETRIES": "8",
				"FITBIT_REDIS_PING_BACKOFF":     "3s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.Redis.PingMaxRetries)
				assert.Equal(t, 3*time.Second, cfg.Redis.PingBackoff)
				assert.Equal(t, "localhost:6379", cfg.Redis.Address())
			},
		},
		{
			name:    "Should fail validation with PingMaxRetries < 1",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_PING_MAX_RETRIES": "0"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation with invalid PingBackoff duration",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_PING_BACKOFF": "notaduration"}),
			wantErr: true,
		},
		{
			name: "Should fail validation when MinIdleConns greater than PoolSize",
			envVars: redisBackedConfig(map[string]string{
				"FITBIT_REDIS_POOL_SIZE":      "2",
				"FITBIT_REDIS_MIN_IDLE_CONNS": "5",
			}),
			wantErr: true,
		},
		{
			name:    "Should fail validation on invalid DB number",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_DB": "16"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation with non-numeric port",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_PORT": "abc"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation with host containing leading whitespace",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_HOST": " localhost"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation when password missing in production",
			envVars: redisBackedConfig(map[string]string{"FITBIT_APP_ENV": "production"}),
			wantErr: true,
		},
		{
			name: "Should fail validation with short password in production",
			envVars: redisBackedConfig(map[string]string{
				"FITBIT_APP_ENV":        "production",
				"FITBIT_REDIS_PASSWORD": "short",
			}),
			wantErr: true,
		},
		{
			name: "Should pass validation with strong password in production",
			envVars: redisBackedConfig(map[string]string{
				"FITBIT_APP_ENV":        "production",
				"FITBIT_REDIS_PASSWORD": "RedisSecure123!",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "production", cfg.App.Environment)
			},
		},
		{
			name: "Should prefer URL over components",
			envVars: redisBackedConfig(map[string]string{
				"FITBIT_REDIS_URL": "rediss://:password@redis.example.com:6379/2",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rediss://:password@redis.example.com:6379/2", cfg.Redis.Address())
				assert.True(t, cfg.Redis.IsConfigured())
			},
		},
		{
			name:    "Should fail validation with invalid URL scheme",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_URL": "http://redis.example.com:6379/0"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation with URL having non-numeric DB",
			envVars: redisBackedConfig(map[string]string{"FITBIT_REDIS_URL": "redis://redis.example.com:6379/abc"}),
			wantErr: true,
		},
		{
			name: "Should skip Redis validation when nothing uses it",
			envVars: mergeEnvVars(map[string]string{
				"FITBIT_REDIS_PORT": "abc",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.NeedsRedis())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadWith(t, tt.envVars)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

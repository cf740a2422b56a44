package config

import (
	"fmt"
	"path/filepath"
)

// Token store backends.
const (
	TokenStoreFile     = "file"
	TokenStoreRedis    = "redis"
	TokenStorePostgres = "postgres"
)

// TokenStoreConfig selects where the OAuth credential is persisted.
type TokenStoreConfig struct {
	Backend string `envconfig:"BACKEND" default:"file" validate:"oneof=file redis postgres"`

	// Path is the JSON file used by the file backend.
	Path string `envconfig:"PATH" default:"tokens.json"`

	// RedisKey is the hash key used by the redis backend.
	RedisKey string `envconfig:"REDIS_KEY" default:"fitbit:oauth:credential"`

	// Name identifies the credential row in the postgres backend.
	Name string `envconfig:"NAME" default:"default"`
}

// Validate checks backend-specific settings.
func (c *TokenStoreConfig) Validate() error {
	switch c.Backend {
	case TokenStoreFile:
		if c.Path == "" {
			return fmt.Errorf("token store path cannot be empty for the file backend")
		}
		if filepath.Base(c.Path) == "." || filepath.Base(c.Path) == string(filepath.Separator) {
			return fmt.Errorf("token store path %q must name a file", c.Path)
		}
	case TokenStoreRedis:
		return validateNoWhitespace(c.RedisKey, "token store redis key")
	case TokenStorePostgres:
		return validateNoWhitespace(c.Name, "token store name")
	}
	return nil
}

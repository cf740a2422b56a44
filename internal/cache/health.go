package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// HealthChecker reports on the Redis instance holding the credential and the
// write spool. A failing ping takes the ingester out of readiness but does
// not stop the scheduler.
type HealthChecker struct {
	client redis.UniversalClient
}

// NewHealthChecker wraps client for the readiness probe.
func NewHealthChecker(client redis.UniversalClient) *HealthChecker {
	return &HealthChecker{client: client}
}

// Name is the key under which the probe reports Redis.
func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings Redis within ctx.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("no redis connection configured")
	}
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

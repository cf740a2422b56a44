package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker reports on the PostgreSQL pool behind the postgres
// credential store. It is only registered when that backend is selected.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker wraps pool for the readiness probe.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name is the key under which the probe reports the database.
func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check acquires a pooled connection and pings it within ctx.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errors.New("no credential database configured")
	}
	if err := h.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

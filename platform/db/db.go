// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"time"

	"outreach_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption tweaks the pool before it connects.
type PoolOption func(*pgxpool.Config)

// WithMaxConns overrides the connection cap. Short-lived tools use a small pool.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		c.MaxConns = n
		if c.MinConns > n {
			c.MinConns = n
		}
	}
}

// NewPool creates a new database connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Package redislock provides a cross-instance advisory lock on Redis.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Open builds a client from REDIS_URL and validates connectivity via PING.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		clone := opts.TLSConfig.Clone()
		clone.InsecureSkipVerify = true
		opts.TLSConfig = clone
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var releaseScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = owner token
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker hands out named locks under a shared key prefix.
type Locker struct {
	rdb    *redis.Client
	prefix string
}

// New returns a Locker whose keys are "<prefix>:<name>".
func New(rdb *redis.Client, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Lock is a held lock. Release it exactly once.
type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

// TryAcquire takes the named lock for ttl. It returns (nil, nil) when another holder owns it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be > 0")
	}
	key := l.prefix + ":" + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{rdb: l.rdb, key: key, token: token}, nil
}

// Release deletes the key only if this holder still owns it.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", lk.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

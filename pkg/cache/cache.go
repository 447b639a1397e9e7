package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/config"
)

// Cache is the injected key/value abstraction used for display-side reads.
// Entries are TTL-bounded; Invalidate is best-effort and callers never treat
// its failure as fatal; a missed invalidation only extends staleness up to
// the TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

func StudyKey(id fmt.Stringer) string   { return "study:" + id.String() }
func DoctorKey(id fmt.Stringer) string  { return "doctor:" + id.String() }
func PatientKey(id fmt.Stringer) string { return "patient:" + id.String() }

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redis and verifies the connection. An empty addr
// returns a no-op cache so the service runs without redis in development.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (Cache, error) {
	if cfg.Addr == "" {
		return noopCache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisCache{client: client, ttl: cfg.CacheTTL}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopCache) Set(context.Context, string, string) error         { return nil }
func (noopCache) Invalidate(context.Context, ...string) error       { return nil }
func (noopCache) Close() error                                      { return nil }

package fleet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// RedisCache keeps msgpack-encoded inventory collections in Redis for TTL,
// falling through to Next on a miss. Redis failures are logged and bypassed.
type RedisCache struct {
	Next   Source
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedisCache(rdb *redis.Client, next Source, ttl time.Duration, log *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{Next: next, rdb: rdb, ttl: ttl, prefix: "dronenav:fleet:", log: log}
}

func (c *RedisCache) Drones(ctx context.Context) ([]model.Drone, error) {
	return cached(ctx, c, "drones", c.Next.Drones)
}

func (c *RedisCache) ServicePoints(ctx context.Context) ([]model.ServicePoint, error) {
	return cached(ctx, c, "service-points", c.Next.ServicePoints)
}

func (c *RedisCache) Availability(ctx context.Context) ([]model.ServicePointDrones, error) {
	return cached(ctx, c, "drones-for-service-points", c.Next.Availability)
}

func (c *RedisCache) RestrictedAreas(ctx context.Context) ([]geo.RestrictedArea, error) {
	return cached(ctx, c, "restricted-areas", c.Next.RestrictedAreas)
}

// Invalidate drops every cached collection.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	keys := []string{"drones", "service-points", "drones-for-service-points", "restricted-areas"}
	for i, k := range keys {
		keys[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func cached[T any](ctx context.Context, c *RedisCache, name string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	key := c.prefix + name
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []T
		uerr := msgpack.Unmarshal(b, &out)
		if uerr == nil {
			return out, nil
		}
		c.log.Warn("fleet cache decode", "key", key, "err", uerr)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("fleet cache get", "key", key, "err", err)
	}

	out, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := msgpack.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.log.Warn("fleet cache set", "key", key, "err", err)
		}
	}
	return out, nil
}

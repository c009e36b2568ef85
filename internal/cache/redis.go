package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache adapts a shared Redis instance to the Cache interface, for
// deployments that run more than one RiskMesh instance behind the same
// cache. On any Redis error it degrades to a miss on read and a no-op on
// write rather than propagating the failure — cache unavailability is
// never a client-facing error.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger

	hits, misses int64
	lastErrLog   atomic.Int64 // unix seconds of the last "cache unavailable" log
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) logDegraded(op string, err error) {
	now := time.Now().Unix()
	last := c.lastErrLog.Load()
	if now-last < 60 {
		return
	}
	if c.lastErrLog.CompareAndSwap(last, now) {
		c.logger.Warn("cache unavailable, degrading", "op", op, "error", err)
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}
	if err != nil {
		c.logDegraded("get", err)
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}
	atomic.AddInt64(&c.hits, 1)
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logDegraded("set", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logDegraded("del", err)
	}
}

func (c *RedisCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	size, _ := c.client.DBSize(context.Background()).Result()

	return Stats{Keys: int(size), HitRate: hitRate}
}

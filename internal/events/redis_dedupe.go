package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper shares delivery marks between processes through Redis keys with a TTL.
type RedisDeduper struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper creates a RedisDeduper.
func NewRedisDeduper(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Mark implements Deduper.
func (r *RedisDeduper) Mark(ctx context.Context, key string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedupe mark: %w", err)
	}
	return !ok, nil
}

// Forget implements Deduper.
func (r *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis dedupe forget: %w", err)
	}
	return nil
}

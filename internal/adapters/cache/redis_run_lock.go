package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRunLock serializes batch runs across service instances with a
// SET NX lease. The TTL bounds how long a crashed runner can block the next
// run.
type RedisRunLock struct {
	client *redis.Client
	prefix string
}

func NewRedisRunLock(client *redis.Client, prefix string) *RedisRunLock {
	if prefix == "" {
		prefix = "revenue-ledger:run-lock:"
	}
	return &RedisRunLock{client: client, prefix: prefix}
}

func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
}

func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

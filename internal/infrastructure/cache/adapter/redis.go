package adapter

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bookmarket-chat/internal/infrastructure/cache/port"
)

// RedisCache satisfies the port.Cache interface over a shared go-redis v9
// client. The client is owned by the caller (it is also used for pub/sub
// fan-out), so Close here is a no-op on the underlying connection.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-connected client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ensure interface compliance at compile time
var _ port.Cache = (*RedisCache)(nil)

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", port.ErrMiss
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.client.Del(ctx, keys...).Result()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return nil
}

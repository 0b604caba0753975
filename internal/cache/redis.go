package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing client. prefix namespaces keys so several
// caches can share one Redis database.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "cache:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Set(key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Set(ctx, c.prefix+key, payload, ttl).Err()
}

func (c *RedisCache) Get(key string, dest interface{}) error {
	ctx, cancel := opCtx()
	defer cancel()
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}

func (c *RedisCache) Delete(key string) error {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Del(ctx, c.prefix+key).Err()
}

func (c *RedisCache) DeletePattern(pattern string) error {
	ctx, cancel := opCtx()
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Exists(key string) (bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	return n > 0, err
}

func (c *RedisCache) Stats() map[string]interface{} {
	ctx, cancel := opCtx()
	defer cancel()
	size, _ := c.client.DBSize(ctx).Result()
	return map[string]interface{}{
		"db_size": size,
		"type":    "redis",
	}
}

func (c *RedisCache) Health() error {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close is a no-op; the shared client is owned by the application.
func (c *RedisCache) Close() error {
	return nil
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyNamespace prefixes every entry so the answer cache can share a Redis
// database with other services without key collisions.
const keyNamespace = "normaqa:"

// redisOpTimeout bounds each Redis round trip so a stalled connection
// cannot hang a question.
const redisOpTimeout = 5 * time.Second

// RedisCache stores answers in Redis so multiple instances share them.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed cache and verifies the connection.
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get returns the cached value for key, if present.
func (r *RedisCache) Get(key string) (string, bool, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	value, err := r.client.Get(ctx, keyNamespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value with the given ttl.
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Set(ctx, keyNamespace+key, value, ttl).Err()
}

// Delete removes a cache entry.
func (r *RedisCache) Delete(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Del(ctx, keyNamespace+key).Err()
}

// Clear removes every entry in this cache's namespace. Keys written by
// other services sharing the database are left alone.
func (r *RedisCache) Clear() error {
	ctx, cancel := r.opContext()
	defer cancel()

	iter := r.client.Scan(ctx, 0, keyNamespace+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func init() {
	RegisterCache("redis", NewRedisCache)
}

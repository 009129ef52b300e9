package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries in Redis and lets Redis expire them.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	clock  Clock
}

// NewRedisBackend creates a Redis-backed store with the default key prefix.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return NewRedisBackendWithPrefix(client, "sqlagent:")
}

// NewRedisBackendWithPrefix creates a Redis-backed store with a custom key prefix.
func NewRedisBackendWithPrefix(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: prefix,
		clock:  RealClock{},
	}
}

// UseClock sets the time source the Redis TTL is computed against. A Store
// hands its own clock to the backend so both agree on expiry.
func (r *RedisBackend) UseClock(c Clock) {
	if c != nil {
		r.clock = c
	}
}

func (r *RedisBackend) Put(ctx context.Context, key string, e Entry) error {
	ttl := e.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) (Entry, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.prefix+k)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = cache.ErrCacheMiss

// NoExpiry stores an entry without a time-to-live.
const NoExpiry time.Duration = -1

// Store is the key-value abstraction shared by all sessions. SetNX never overwrites.
type Store interface {
	Get(ctx context.Context, key string, target any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStore is a Store over go-redis/cache. Values are msgpack encoded.
type RedisStore struct {
	instance *cache.Cache
}

// NewRedisStore wraps client. withLocalCache adds an in-process TinyLFU tier in front of Redis.
func NewRedisStore(client redis.UniversalClient, withLocalCache bool) *RedisStore {
	var localCache cache.LocalCache
	if withLocalCache {
		localCache = cache.NewTinyLFU(10000, time.Minute)
	}
	return &RedisStore{cache.New(&cache.Options{
		Redis:      client,
		LocalCache: localCache,
	})}
}

func (c *RedisStore) Get(ctx context.Context, key string, target any) error {
	return c.instance.Get(ctx, key, target)
}

// Set writes value. A zero ttl means the library default of one hour; use NoExpiry for none.
func (c *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.instance.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

// SetNX writes value only if key is absent. It does not report who won; callers read back.
// The local tier is skipped so a losing writer never caches its own value.
func (c *RedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.instance.Set(&cache.Item{
		Ctx:            ctx,
		Key:            key,
		Value:          value,
		TTL:            ttl,
		SetNX:          true,
		SkipLocalCache: true,
	})
}

func (c *RedisStore) Delete(ctx context.Context, key string) error {
	err := c.instance.Delete(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	return err
}

// UseCache returns the cached value at key, computing and storing it on a miss.
func UseCache[T any](ctx context.Context, store Store, key string, ttl time.Duration, callback func() (T, error)) (T, error) {
	var v T
	err := store.Get(ctx, key, &v)
	if !errors.Is(err, ErrCacheMiss) {
		return v, err
	}

	v, err = callback()
	if err != nil {
		return v, err
	}

	//nolint:errcheck
	store.Set(ctx, key, v, ttl)
	return v, nil
}

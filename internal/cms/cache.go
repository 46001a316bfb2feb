package cms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"

	"github.com/ironwatch/site/internal/config"
)

// ResponseCache stores raw query results.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// ErrEntryTooLarge is returned by FreeCache.Set for values above a
// 1024th of the cache size. Such results are served uncached.
var ErrEntryTooLarge = errors.New("cache entry too large")

// FreeCache is an in-process ResponseCache.
type FreeCache struct {
	cache *freecache.Cache
}

// NewFreeCache allocates a cache of sizeMB megabytes.
func NewFreeCache(sizeMB int) *FreeCache {
	if sizeMB <= 0 {
		sizeMB = 128
	}
	return &FreeCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (c *FreeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := c.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *FreeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.cache.Set([]byte(key), value, int(ttl.Seconds()))
	if errors.Is(err, freecache.ErrLargeEntry) {
		return fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(value))
	}
	return err
}

func (c *FreeCache) Close() error {
	c.cache.Clear()
	return nil
}

// RedisCache is a ResponseCache shared between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and checks the connection.
func NewRedisCache(ctx context.Context, opts *redis.Options, prefix string) (*RedisCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NewCache builds the response cache selected by cfg.Type. "none" returns
// a nil cache.
func NewCache(ctx context.Context, cfg config.CacheConfig) (ResponseCache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewFreeCache(cfg.SizeMB), nil
	case "redis":
		return NewRedisCache(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

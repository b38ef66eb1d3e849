package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs for admin-managed reference data.
const (
	TTLProducts   = 5 * time.Minute
	TTLTemplates  = 5 * time.Minute
	TTLPromotions = 2 * time.Minute // time-windowed, keep short
)

// ErrMiss is returned by GetJSON when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Redis stores JSON values under a key prefix. A nil *Redis is a valid,
// always-missing cache.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Connect parses url and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (c *Redis) key(k string) string { return c.prefix + ":" + k }

func (c *Redis) GetJSON(ctx context.Context, key string, dst any) error {
	if c == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.Unmarshal(raw, dst)
}

func (c *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

// Invalidate deletes every key starting with pattern.
func (c *Redis) Invalidate(ctx context.Context, pattern string) (int, error) {
	if c == nil {
		return 0, nil
	}
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(pattern)+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache del: %w", err)
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Remember returns the cached value for key or calls load and caches its result.
func Remember[T any](ctx context.Context, c *Redis, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if err := c.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}
	fresh, err := load(ctx)
	if err != nil {
		return fresh, err
	}
	_ = c.SetJSON(ctx, key, fresh, ttl)
	return fresh, nil
}

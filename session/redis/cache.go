package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	backend "github.com/redis/go-redis/v9"
	"github.com/tbxark/tripvoice/session"
)

// Cache implements session.Cache with JSON values.
type Cache[S any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

func NewCache[S any](client *backend.Client, prefix string, ttl time.Duration) *Cache[S] {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Cache[S]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[S]) Set(ctx context.Context, key string, val S) error {
	data, err := sonic.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

func (c *Cache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	var val S
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return val, false, nil
		}
		return val, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := sonic.Unmarshal(data, &val); err != nil {
		return val, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return val, true, nil
}

func (c *Cache[S]) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

func (c *Cache[S]) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ session.Cache[string] = (*Cache[string])(nil)

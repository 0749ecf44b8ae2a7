package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a small JSON cache over a redis client. Values expire after
// the configured TTL, so even entries that are never invalidated go
// stale only briefly.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to redis and verifies the connection with a ping.
func New(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

// Client exposes the underlying redis client for middleware that needs it.
func (c *Redis) Client() *redis.Client {
	return c.client
}

// Get unmarshals the cached value for key into dest. Returns redis.Nil
// wrapped when the key does not exist.
func (c *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set stores value under key for the configured TTL.
func (c *Redis) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes keys from the cache. Missing keys are not an error.
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}

package redis

import (
	"context"
	"fmt"
	"time"

	"flexi-posture/common/config"

	"github.com/go-redis/redis/v8"
)

// Client alias so callers only import this package
type Client = redis.Client

// NewRedisClient creates a client from shared config. Reads use a timeout longer than the
// stream block interval so blocking XREADGROUP calls are not cut short.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Connect creates a client and pings it within timeout; the client is closed on failure
func Connect(ctx context.Context, cfg *config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	client := NewRedisClient(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := Ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Ping checks connectivity
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close releases the connection pool
func Close(client *redis.Client) error {
	return client.Close()
}

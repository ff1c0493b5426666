package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// newRedisClient parses ARC_REDIS_URL and verifies the server answers.
func newRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: ARC_REDIS_URL: %v", ErrConfig, err)
	}
	client := redis.NewClient(opts)
	if err := pingRedis(ctx, client, 3*time.Second); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func pingRedis(parent context.Context, client *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

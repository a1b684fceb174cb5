package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smart-asd/portal/internal/config"
)

// NewRedis creates the Redis client backing the passcode challenge store.
// The URL is parsed with go-redis's own parser so credentials, DB index and
// TLS ("rediss://") all come from the single REDIS_URL setting.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ping := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	if err := pingWithRetry("redis", ping); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

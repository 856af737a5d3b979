package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classroll/classroll-api/pkg/config"
)

const connectTimeout = 5 * time.Second

// NewRedis connects the stats-cache client and verifies the connection
// before handing it out. A redis that is down surfaces at startup rather
// than on the first dashboard request.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}

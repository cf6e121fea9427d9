// SPDX-License-Identifier: MIT

// Package redisx opens the Redis client shared by the checkpoint and lease
// backends.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr      string `yaml:"addr"`      // host:port
	Password  string `yaml:"password"`  // optional
	DB        int    `yaml:"db"`        // database number
	KeyPrefix string `yaml:"keyPrefix"` // namespace for every key, default "eventcast"
}

// Prefix returns the configured key prefix or the default.
func (c Config) Prefix() string {
	if c.KeyPrefix == "" {
		return "eventcast"
	}
	return c.KeyPrefix
}

// Open connects and pings the server.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to redis")
	return client, nil
}

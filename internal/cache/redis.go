// Package cache keeps rendered product listings in Redis.
//
// Keys carry a generation number. Invalidate bumps the generation, so every
// earlier entry stops being read and expires on its own TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Listings struct {
	client      redis.UniversalClient
	serviceName string
	ttl         time.Duration
}

func NewListings(client redis.UniversalClient, serviceName string, ttl time.Duration) *Listings {
	return &Listings{client: client, serviceName: serviceName, ttl: ttl}
}

// NewRedisClient opens a client and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (l *Listings) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", l.serviceName, operation, key)
}

func (l *Listings) generationKey() string {
	return l.GenerateKey("listings", "generation")
}

func (l *Listings) generation(ctx context.Context) (string, error) {
	gen, err := l.client.Get(ctx, l.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return gen, nil
}

func (l *Listings) entryKey(ctx context.Context, operation, key string) (string, error) {
	gen, err := l.generation(ctx)
	if err != nil {
		return "", err
	}
	return l.GenerateKey(operation, gen+":"+key), nil
}

// Get decodes the cached value into dst and reports whether it was found.
func (l *Listings) Get(ctx context.Context, operation, key string, dst any) (bool, error) {
	k, err := l.entryKey(ctx, operation, key)
	if err != nil {
		return false, err
	}

	data, err := l.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", k, err)
	}
	return true, nil
}

func (l *Listings) Set(ctx context.Context, operation, key string, value any) error {
	k, err := l.entryKey(ctx, operation, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	return l.client.Set(ctx, k, data, l.ttl).Err()
}

func (l *Listings) Invalidate(ctx context.Context) error {
	return l.client.Incr(ctx, l.generationKey()).Err()
}

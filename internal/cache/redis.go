package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultMirrorTTL = 30 * 24 * time.Hour

func NewRedisMirror(client *redis.Client, baseTTL time.Duration) *RedisMirror {
	if baseTTL <= 0 {
		baseTTL = DefaultMirrorTTL
	}
	return &RedisMirror{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisMirror struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisMirror) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r RedisMirror) Set(ctx context.Context, key string, value []byte) error {
	jitter := time.Duration(rand.Intn(24)) * time.Hour
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisMirror) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

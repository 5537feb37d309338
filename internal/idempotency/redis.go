package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "escrow:idempotency:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Redis is a Store shared by every replica of the service.
type Redis struct {
	client redis.Cmdable
}

// NewRedis wraps a Redis client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Claim implements Store with SET NX.
func (s *Redis) Claim(ctx context.Context, key string, pending Record, ttl time.Duration) (Record, bool, error) {
	raw, err := json.Marshal(pending)
	if err != nil {
		return Record{}, false, fmt.Errorf("encode idempotency record: %w", err)
	}
	claimed, err := s.client.SetNX(ctx, redisKeyPrefix+key, raw, ttl).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return pending, true, nil
	}

	existing, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as in flight and let the
		// client retry.
		return Record{Fingerprint: pending.Fingerprint}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load idempotency record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(existing, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return record, false, nil
}

// Complete implements Store.
func (s *Redis) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *Redis) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

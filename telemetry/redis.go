package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"weather-monitor/models"
)

// stringGetter is the part of the Redis client the store needs
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore reads the latest snapshot kept as a JSON document under one key
type RedisStore struct {
	client stringGetter
	key    string
}

// NewRedisStore creates a store reading key from client
func NewRedisStore(client stringGetter, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Name returns the store name
func (s *RedisStore) Name() string {
	return "redis"
}

// Latest reads the snapshot key; a missing key means no telemetry
func (s *RedisStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TelemetrySnapshot{}, false, nil
	}
	if err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("failed to read %s from redis: %w", s.key, err)
	}
	return models.DecodeSnapshot(val)
}

var _ Store = (*RedisStore)(nil)

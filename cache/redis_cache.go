package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"weather-monitor/datasource"
	"weather-monitor/models"
)

// kvClient is the part of a redis client the cache needs
type kvClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisForecastSource caches raw forecasts in Redis so that several
// instances share one upstream quota
type RedisForecastSource struct {
	source     datasource.ForecastSource
	client     kvClient
	expiration time.Duration
	prefix     string
	logger     *slog.Logger
}

// NewRedisForecastSource creates a Redis-backed cache around a forecast source
func NewRedisForecastSource(source datasource.ForecastSource, client kvClient, expiration time.Duration, logger *slog.Logger) *RedisForecastSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisForecastSource{
		source:     source,
		client:     client,
		expiration: expiration,
		prefix:     "forecast:",
		logger:     logger,
	}
}

// Name returns the name of the underlying forecast source with [Redis Cached] suffix
func (c *RedisForecastSource) Name() string {
	return c.source.Name() + " [Redis Cached]"
}

// FetchForecast returns the cached forecast when present, otherwise fetches
// and stores it. Redis failures degrade to a direct fetch.
func (c *RedisForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	key := c.prefix + cacheKey(location, days)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var forecast models.ForecastResponse
		jsonErr := json.Unmarshal(val, &forecast)
		if jsonErr == nil {
			c.logger.Debug("forecast redis cache hit", "key", key)
			return forecast, nil
		}
		c.logger.Warn("dropping undecodable cached forecast", "key", key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
		c.logger.Debug("forecast redis cache miss", "key", key)
	default:
		c.logger.Warn("forecast redis cache unavailable", "key", key, "error", err)
	}

	forecast, err := c.source.FetchForecast(ctx, location, days)
	if err != nil {
		return models.ForecastResponse{}, err
	}

	payload, err := json.Marshal(forecast)
	if err != nil {
		c.logger.Warn("failed to encode forecast for cache", "key", key, "error", err)
		return forecast, nil
	}
	if err := c.client.Set(ctx, key, payload, c.expiration).Err(); err != nil {
		c.logger.Warn("failed to store forecast in redis", "key", key, "error", err)
	}

	return forecast, nil
}

// Ensure RedisForecastSource implements ForecastSource
var _ datasource.ForecastSource = (*RedisForecastSource)(nil)

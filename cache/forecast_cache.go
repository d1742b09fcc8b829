package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weather-monitor/datasource"
	"weather-monitor/models"
)

// CachedForecastSource wraps a ForecastSource and keeps raw upstream
// forecasts in memory for a fixed duration. Telemetry is merged later and
// is never part of what gets cached.
type CachedForecastSource struct {
	source datasource.ForecastSource
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cachedForecast // keyed by location:days
	hits    int
	misses  int
}

type cachedForecast struct {
	forecast models.ForecastResponse
	storedAt time.Time
}

// NewCachedForecastSource creates a new cached wrapper around a forecast source
func NewCachedForecastSource(source datasource.ForecastSource, ttl time.Duration, logger *slog.Logger) *CachedForecastSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedForecastSource{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cachedForecast),
	}
}

// Name returns the name of the underlying forecast source with [Cached] suffix
func (c *CachedForecastSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// cacheKey folds case and surrounding space so "Lahore" and " lahore" share an entry
func cacheKey(location string, days int) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(strings.TrimSpace(location)), days)
}

// lookup returns a fresh entry for key and counts the hit or miss
func (c *CachedForecastSource) lookup(key string) (models.ForecastResponse, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	age := c.now().Sub(entry.storedAt)
	if !ok || age >= c.ttl {
		c.misses++
		return models.ForecastResponse{}, 0, false
	}
	c.hits++
	return entry.forecast.Clone(), age, true
}

// FetchForecast serves a cached copy while it is younger than the TTL and
// goes upstream otherwise. Failed fetches are not cached.
func (c *CachedForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	key := cacheKey(location, days)

	if forecast, age, ok := c.lookup(key); ok {
		c.logger.Debug("forecast cache hit", "key", key, "source", c.source.Name(), "age", age.Round(time.Second))
		return forecast, nil
	}
	c.logger.Debug("forecast cache miss", "key", key, "source", c.source.Name())

	forecast, err := c.source.FetchForecast(ctx, location, days)
	if err != nil {
		return models.ForecastResponse{}, err
	}

	c.mu.Lock()
	c.entries[key] = cachedForecast{forecast: forecast.Clone(), storedAt: c.now()}
	c.mu.Unlock()

	return forecast, nil
}

// Prune removes expired entries and returns how many were dropped
func (c *CachedForecastSource) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	pruned := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			pruned++
		}
	}
	return pruned
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedForecastSource) CacheStats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

var _ datasource.ForecastSource = (*CachedForecastSource)(nil)

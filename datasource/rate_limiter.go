package datasource

import (
	"context"
	"fmt"

	"weather-monitor/models"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a WeatherProvider with separate limiters for
// forecast and search calls, which share the upstream quota but not urgency
type RateLimitedProvider struct {
	provider        WeatherProvider
	forecastLimiter *rate.Limiter
	searchLimiter   *rate.Limiter
	name            string
}

// NewRateLimitedProvider creates a rate limited provider.
// rps is the maximum requests per second allowed (can be fractional for less than 1 request per second),
// burst is the maximum burst size allowed for each call type.
func NewRateLimitedProvider(provider WeatherProvider, rps float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider:        provider,
		forecastLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		searchLimiter:   rate.NewLimiter(rate.Limit(rps), burst),
		name:            fmt.Sprintf("%s [Rate Limited]", provider.Name()),
	}
}

// FetchForecast fetches forecast data, respecting rate limits
func (r *RateLimitedProvider) FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	// Wait for rate limiter permission or context cancellation
	if err := r.forecastLimiter.Wait(ctx); err != nil {
		return models.ForecastResponse{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	// Forward to the underlying provider
	return r.provider.FetchForecast(ctx, location, days)
}

// SearchLocations searches locations, respecting rate limits
func (r *RateLimitedProvider) SearchLocations(ctx context.Context, query string) ([]models.LocationCandidate, error) {
	if err := r.searchLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.provider.SearchLocations(ctx, query)
}

// Name returns the provider name
func (r *RateLimitedProvider) Name() string {
	return r.name
}

// Verify that our rate limited type implements the required interface
var _ WeatherProvider = (*RateLimitedProvider)(nil)

package datasource

import (
	"context"

	"weather-monitor/models"
)

// ForecastSource is an interface for services that can fetch weather forecasts
type ForecastSource interface {
	// FetchForecast fetches the forecast for a city for the specified number of days
	FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error)

	// Name returns the source's name
	Name() string
}

// LocationSearcher is an interface for services that resolve partial city names
type LocationSearcher interface {
	// SearchLocations returns candidate locations matching a partial name
	SearchLocations(ctx context.Context, query string) ([]models.LocationCandidate, error)

	// Name returns the searcher's name
	Name() string
}

// WeatherProvider serves both forecasts and location search
type WeatherProvider interface {
	ForecastSource
	LocationSearcher
}

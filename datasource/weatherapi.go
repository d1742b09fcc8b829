package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"weather-monitor/models"
)

const defaultWeatherAPIURL = "https://api.weatherapi.com/v1"

// WeatherAPIProvider implements both ForecastSource and LocationSearcher against weatherapi.com
type WeatherAPIProvider struct {
	apiKey string
	client *resty.Client
}

// ProviderOption customises a WeatherAPIProvider
type ProviderOption func(*WeatherAPIProvider)

// WithBaseURL points the provider at another endpoint (tests, proxies)
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *WeatherAPIProvider) {
		p.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}
}

// WithTimeout bounds every request, retries included individually
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *WeatherAPIProvider) {
		if timeout > 0 {
			p.client.SetTimeout(timeout)
		}
	}
}

// WithRetryCount sets how many times a transient failure is retried
func WithRetryCount(n int) ProviderOption {
	return func(p *WeatherAPIProvider) {
		if n >= 0 {
			p.client.SetRetryCount(n)
		}
	}
}

// WithLogger sends resty's retry and transport messages to logger
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *WeatherAPIProvider) {
		p.client.SetLogger(NewRestyLogger(logger))
	}
}

// WithRetryWait sets the initial wait between retries
func WithRetryWait(wait time.Duration) ProviderOption {
	return func(p *WeatherAPIProvider) {
		p.client.SetRetryWaitTime(wait)
		if wait > p.client.RetryMaxWaitTime {
			p.client.SetRetryMaxWaitTime(wait)
		}
	}
}

// NewWeatherAPIProvider creates a new WeatherAPI provider with a 10s timeout
// and a single retry for transient network errors
func NewWeatherAPIProvider(apiKey string, options ...ProviderOption) *WeatherAPIProvider {
	client := resty.New().
		SetBaseURL(defaultWeatherAPIURL).
		SetTimeout(10*time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(250*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json").
		SetLogger(NewRestyLogger(slog.Default())).
		AddRetryCondition(isTransient)

	p := &WeatherAPIProvider{
		apiKey: apiKey,
		client: client,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *WeatherAPIProvider) Name() string {
	return "WeatherAPI"
}

// isTransient decides whether a failed attempt is worth one more try
func isTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	switch resp.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// apiError is the error envelope weatherapi.com returns with 4xx responses
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPIProvider) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	params["key"] = p.apiKey

	// Execute request
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	// Check for error status code
	if resp.IsError() {
		var envelope apiError
		if json.Unmarshal(resp.Body(), &envelope) == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("API error (status %d, code %d): %s",
				resp.StatusCode(), envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return resp.Body(), nil
}

// FetchForecast fetches the forecast for a city for the specified number of days
func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	req := models.ForecastRequest{City: location, Days: days}
	if err := req.Validate(); err != nil {
		return models.ForecastResponse{}, err
	}

	body, err := p.get(ctx, "/forecast.json", map[string]string{
		"q":    req.City,
		"days": strconv.Itoa(req.Days),
	})
	if err != nil {
		return models.ForecastResponse{}, err
	}

	// Parse response
	var forecast models.ForecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return models.ForecastResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return forecast, nil
}

// SearchLocations resolves a partial city name into candidate locations
func (p *WeatherAPIProvider) SearchLocations(ctx context.Context, query string) ([]models.LocationCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.ErrEmptyCity
	}

	body, err := p.get(ctx, "/search.json", map[string]string{"q": query})
	if err != nil {
		return nil, err
	}

	var candidates []models.LocationCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return candidates, nil
}

// Verify that the provider implements the required interfaces
var _ WeatherProvider = (*WeatherAPIProvider)(nil)

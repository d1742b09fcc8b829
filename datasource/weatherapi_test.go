package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"weather-monitor/models"
)

const forecastBody = `{
	"location": {"name": "Islamabad", "country": "Pakistan"},
	"current": {
		"temp_c": 28.0, "temp_f": 82.4, "is_day": 1, "humidity": 35,
		"pressure_mb": 1009.0, "condition": {"text": "Sunny"}
	},
	"forecast": {"forecastday": [
		{"date": "2024-05-01", "day": {"avgtemp_c": 27.1, "condition": {"text": "Sunny"}}},
		{"date": "2024-05-02", "day": {"avgtemp_c": 29.4, "condition": {"text": "Partly cloudy"}}}
	]}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *WeatherAPIProvider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewWeatherAPIProvider("test-key",
		WithBaseURL(ts.URL),
		WithTimeout(2*time.Second),
		WithRetryWait(10*time.Millisecond),
	)
}

func TestFetchForecastBuildsRequest(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("q") != "Islamabad" || q.Get("days") != "7" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(forecastBody))
	})

	forecast, err := p.FetchForecast(context.Background(), "Islamabad", 7)
	if err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}
	if forecast.Location.Name != "Islamabad" || forecast.Location.Country != "Pakistan" {
		t.Fatalf("unexpected location %+v", forecast.Location)
	}
	if forecast.Current.TempC != 28.0 || forecast.Current.Humidity != 35 || !forecast.Current.Daytime() {
		t.Fatalf("unexpected current %+v", forecast.Current)
	}
	if len(forecast.Forecast.ForecastDay) != 2 || forecast.Forecast.ForecastDay[1].Date != "2024-05-02" {
		t.Fatalf("unexpected forecast days %+v", forecast.Forecast.ForecastDay)
	}
}

func TestFetchForecastRejectsInvalidRequest(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	if _, err := p.FetchForecast(context.Background(), "", 7); !errors.Is(err, models.ErrEmptyCity) {
		t.Fatalf("expected ErrEmptyCity, got %v", err)
	}
	if _, err := p.FetchForecast(context.Background(), "Oslo", 0); !errors.Is(err, models.ErrInvalidDays) {
		t.Fatalf("expected ErrInvalidDays, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("invalid requests must not reach the network")
	}
}

func TestFetchForecastRetriesOnceOnTransientStatus(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(forecastBody))
	})

	if _, err := p.FetchForecast(context.Background(), "Islamabad", 3); err != nil {
		t.Fatalf("FetchForecast failed after retry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestFetchForecastRetriesOnceOnDroppedConnection(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("test server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("Hijack failed: %v", err)
				return
			}
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(forecastBody))
	})

	forecast, err := p.FetchForecast(context.Background(), "Islamabad", 3)
	if err != nil {
		t.Fatalf("FetchForecast failed after retry: %v", err)
	}
	if forecast.Location.Name != "Islamabad" {
		t.Fatalf("unexpected location %+v", forecast.Location)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestFetchForecastGivesUpAfterOneRetry(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		conn.Close()
	})

	if _, err := p.FetchForecast(context.Background(), "Islamabad", 3); err == nil {
		t.Fatal("expected an error when every attempt is dropped")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestFetchForecastDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
	})

	_, err := p.FetchForecast(context.Background(), "Atlantis", 3)
	if err == nil || !strings.Contains(err.Error(), "No matching location found.") {
		t.Fatalf("expected upstream error message, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestFetchForecastMalformedBody(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"location":`))
	})

	if _, err := p.FetchForecast(context.Background(), "Islamabad", 3); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSearchLocations(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" || r.URL.Query().Get("q") != "Isla" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"Islamabad","country":"Pakistan"},{"id":2,"name":"Isla Vista","country":"USA"}]`))
	})

	got, err := p.SearchLocations(context.Background(), "Isla")
	if err != nil {
		t.Fatalf("SearchLocations failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Islamabad" || got[1].Country != "USA" {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestRateLimitedProviderForwards(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/search.json" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(forecastBody))
	})
	limited := NewRateLimitedProvider(p, 100, 2)

	if limited.Name() != "WeatherAPI [Rate Limited]" {
		t.Fatalf("unexpected name %q", limited.Name())
	}
	if _, err := limited.FetchForecast(context.Background(), "Islamabad", 1); err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}
	if _, err := limited.SearchLocations(context.Background(), "Isl"); err != nil {
		t.Fatalf("SearchLocations failed: %v", err)
	}
}

func TestRateLimitedProviderHonoursContext(t *testing.T) {
	p := NewWeatherAPIProvider("k", WithBaseURL("http://127.0.0.1:0"))
	limited := NewRateLimitedProvider(p, 0.001, 1)

	// Drain the single burst token
	limited.forecastLimiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.FetchForecast(ctx, "Oslo", 1); err == nil {
		t.Fatal("expected rate limit wait to fail on canceled context")
	}
}

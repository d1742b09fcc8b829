package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"weather-monitor/models"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Name() string { return "Fake" }

func (s *countingSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	s.calls++
	if s.err != nil {
		return models.ForecastResponse{}, s.err
	}
	return models.ForecastResponse{
		Location: models.Location{Name: location},
		Forecast: models.Forecast{ForecastDay: make([]models.ForecastDay, days)},
	}, nil
}

func TestCachedForecastSourceHitAndExpiry(t *testing.T) {
	src := &countingSource{}
	c := NewCachedForecastSource(src, time.Minute, nil)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := c.FetchForecast(ctx, "Islamabad", 7); err != nil {
		t.Fatal(err)
	}
	got, err := c.FetchForecast(ctx, "Islamabad", 7)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", src.calls)
	}
	if got.Location.Name != "Islamabad" || len(got.Forecast.ForecastDay) != 7 {
		t.Fatalf("unexpected cached forecast %+v", got)
	}

	// A different day count is a different entry
	if _, err := c.FetchForecast(ctx, "Islamabad", 3); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", src.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.FetchForecast(ctx, "Islamabad", 7); err != nil {
		t.Fatal(err)
	}
	if src.calls != 3 {
		t.Fatalf("expected expired entry to refetch, got %d calls", src.calls)
	}

	hits, misses := c.CacheStats()
	if hits != 1 || misses != 3 {
		t.Fatalf("unexpected stats hits=%d misses=%d", hits, misses)
	}
}

func TestCachedForecastSourceKeyIgnoresCaseAndSpace(t *testing.T) {
	src := &countingSource{}
	c := NewCachedForecastSource(src, time.Minute, nil)

	ctx := context.Background()
	for _, city := range []string{"Lahore", "lahore", "  LAHORE "} {
		if _, err := c.FetchForecast(ctx, city, 3); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one upstream fetch for the same city, got %d", src.calls)
	}

	if _, err := c.FetchForecast(ctx, "Lahore", 5); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("a different day count must miss, got %d fetches", src.calls)
	}
}

func TestCachedForecastSourceReturnsCopies(t *testing.T) {
	c := NewCachedForecastSource(&countingSource{}, time.Minute, nil)
	ctx := context.Background()

	first, _ := c.FetchForecast(ctx, "Oslo", 1)
	first.Forecast.ForecastDay[0].Date = "mutated"

	second, _ := c.FetchForecast(ctx, "Oslo", 1)
	if second.Forecast.ForecastDay[0].Date == "mutated" {
		t.Fatal("cache handed out shared state")
	}
}

func TestCachedForecastSourceDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("down")}
	c := NewCachedForecastSource(src, time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.FetchForecast(context.Background(), "Oslo", 1); err == nil {
			t.Fatal("expected error")
		}
	}
	if src.calls != 2 {
		t.Fatalf("errors must not be cached, got %d calls", src.calls)
	}
}

func TestCachedForecastSourcePrune(t *testing.T) {
	c := NewCachedForecastSource(&countingSource{}, time.Minute, nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.FetchForecast(context.Background(), "A", 1)
	c.FetchForecast(context.Background(), "B", 1)

	now = now.Add(time.Hour)
	if n := c.Prune(); n != 2 {
		t.Fatalf("expected 2 pruned entries, got %d", n)
	}
	if c.Name() != "Fake [Cached]" {
		t.Fatalf("unexpected name %q", c.Name())
	}
}

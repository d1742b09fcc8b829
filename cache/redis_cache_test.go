package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeKV struct {
	values map[string][]byte
	down   bool
	ttl    time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string][]byte)}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.down {
		return redis.NewStringResult("", errors.New("dial tcp: connection refused"))
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.down {
		return redis.NewStatusResult("", errors.New("dial tcp: connection refused"))
	}
	f.values[key] = value.([]byte)
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisForecastSourceCachesRawForecast(t *testing.T) {
	src := &countingSource{}
	kv := newFakeKV()
	c := NewRedisForecastSource(src, kv, 10*time.Minute, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := c.FetchForecast(ctx, "Karachi", 2)
		if err != nil {
			t.Fatal(err)
		}
		if got.Location.Name != "Karachi" || len(got.Forecast.ForecastDay) != 2 {
			t.Fatalf("unexpected forecast %+v", got)
		}
	}

	if src.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", src.calls)
	}
	if _, ok := kv.values["forecast:karachi:2"]; !ok {
		t.Errorf("expected key forecast:karachi:2, have %v", kv.values)
	}
	if kv.ttl != 10*time.Minute {
		t.Errorf("expected 10m expiration, got %s", kv.ttl)
	}
}

func TestRedisForecastSourceDegradesWhenRedisIsDown(t *testing.T) {
	src := &countingSource{}
	kv := newFakeKV()
	kv.down = true
	c := NewRedisForecastSource(src, kv, time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.FetchForecast(context.Background(), "Lahore", 1); err != nil {
			t.Fatalf("redis outage should not fail the fetch: %v", err)
		}
	}
	if src.calls != 2 {
		t.Errorf("expected direct fetches, got %d", src.calls)
	}
}

func TestRedisForecastSourceDropsCorruptEntries(t *testing.T) {
	src := &countingSource{}
	kv := newFakeKV()
	kv.values["forecast:Quetta:1"] = []byte("{not json")
	c := NewRedisForecastSource(src, kv, time.Minute, nil)

	got, err := c.FetchForecast(context.Background(), "Quetta", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location.Name != "Quetta" || src.calls != 1 {
		t.Errorf("expected a fresh fetch, got %+v after %d calls", got, src.calls)
	}
}

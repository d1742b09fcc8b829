package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"weather-monitor/datasource"
)

const openTimeout = 5 * time.Second

// Open builds the configured pull-based backend and verifies it is reachable.
// The MQTT backend is push-based and shares the broker connection, so it is
// wired by the caller instead.
func Open(ctx context.Context, cfg *datasource.Config, logger *slog.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	tc := cfg.Telemetry
	switch tc.Backend {
	case datasource.BackendFirebase:
		return NewFirebaseStore(tc.Firebase.DatabaseURL, tc.Firebase.Auth, cfg.WeatherAPI.Timeout.Std(), logger), nil

	case datasource.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis not reachable at %s: %w", tc.Redis.Addr, err)
		}
		return NewRedisStore(rdb, tc.Redis.Key), nil

	case datasource.BackendInflux:
		client := influxdb2.NewClient(tc.Influx.URL, tc.Influx.Token)
		health, err := client.Health(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
		if health.Status != "pass" {
			client.Close()
			return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
		}
		return NewInfluxStore(client, tc.Influx.Org, tc.Influx.Bucket, tc.Influx.Measurement, tc.Influx.Lookback.Std()), nil

	case datasource.BackendPostgres:
		pool, err := pgxpool.New(ctx, tc.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres configuration: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres not reachable: %w", err)
		}
		return NewPostgresStore(pool, tc.Postgres.Table), nil
	}

	return nil, fmt.Errorf("telemetry backend %q cannot be opened here", tc.Backend)
}

package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"weather-monitor/models"
)

// InfluxStore reads the newest point of a measurement whose fields carry the
// snapshot (temperature_c, humidity, co_detected, ...)
type InfluxStore struct {
	client      influxdb2.Client
	org         string
	bucket      string
	measurement string
	lookback    time.Duration
}

// NewInfluxStore creates a store for the given bucket and measurement
func NewInfluxStore(client influxdb2.Client, org, bucket, measurement string, lookback time.Duration) *InfluxStore {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &InfluxStore{
		client:      client,
		org:         org,
		bucket:      bucket,
		measurement: measurement,
		lookback:    lookback,
	}
}

// Name returns the store name
func (s *InfluxStore) Name() string {
	return "influx"
}

// latestQuery pivots fields into columns and keeps the newest row
func latestQuery(bucket, measurement string, lookback time.Duration) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: 1)`, bucket, int64(lookback.Seconds()), measurement)
}

// snapshotFromRecord converts a pivoted row, using the point time when the
// row has no explicit date field
func snapshotFromRecord(values map[string]interface{}, at time.Time) (models.TelemetrySnapshot, bool, error) {
	if len(values) == 0 {
		return models.TelemetrySnapshot{}, false, nil
	}
	fields := make(map[string]interface{}, len(values)+1)
	for k, v := range values {
		fields[k] = v
	}
	if _, ok := fields["date"]; !ok && !at.IsZero() {
		fields["date"] = at.UTC().Format(time.RFC3339)
	}
	return models.SnapshotFromFields(fields)
}

// Latest queries the newest point within the lookback window
func (s *InfluxStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	queryAPI := s.client.QueryAPI(s.org)

	result, err := queryAPI.Query(ctx, latestQuery(s.bucket, s.measurement, s.lookback))
	if err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("influx query failed: %w", err)
	}
	defer result.Close()

	var (
		values map[string]interface{}
		at     time.Time
	)
	for result.Next() {
		values = result.Record().Values()
		at = result.Record().Time()
	}
	if err := result.Err(); err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("influx result error: %w", err)
	}

	return snapshotFromRecord(values, at)
}

// Close releases the client
func (s *InfluxStore) Close() {
	s.client.Close()
}

var _ Store = (*InfluxStore)(nil)

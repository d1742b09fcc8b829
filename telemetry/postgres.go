package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"weather-monitor/models"
)

// rowQuerier is satisfied by *pgxpool.Pool and *pgx.Conn
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads the newest row of a snapshot table, e.g. a
// TimescaleDB hypertable keyed by recorded_at
type PostgresStore struct {
	db    rowQuerier
	query string
}

// NewPostgresStore creates a store reading from table (optionally schema-qualified)
func NewPostgresStore(db rowQuerier, table string) *PostgresStore {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	query := fmt.Sprintf(`
		SELECT temperature_c, temperature_f, temperature_k, temperature_r,
		       humidity, co_detected, light_detected, vibration_detected, date
		FROM %s
		ORDER BY recorded_at DESC
		LIMIT 1`, ident)

	return &PostgresStore{db: db, query: query}
}

// Name returns the store name
func (s *PostgresStore) Name() string {
	return "postgres"
}

// Latest selects the newest row. NULL columns make the row a partial snapshot.
func (s *PostgresStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	var (
		tempC, tempF, tempK, tempR, humidity *float64
		co, light, vibration                 *bool
		date                                 *string
	)

	err := s.db.QueryRow(ctx, s.query).Scan(&tempC, &tempF, &tempK, &tempR, &humidity, &co, &light, &vibration, &date)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TelemetrySnapshot{}, false, nil
	}
	if err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("snapshot query failed: %w", err)
	}

	if tempC == nil || tempF == nil || tempK == nil || tempR == nil || humidity == nil ||
		co == nil || light == nil || vibration == nil || date == nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("%w: NULL column in newest row", models.ErrPartialSnapshot)
	}

	return models.TelemetrySnapshot{
		TemperatureC:      *tempC,
		TemperatureF:      *tempF,
		TemperatureK:      *tempK,
		TemperatureR:      *tempR,
		Humidity:          *humidity,
		CODetected:        *co,
		LightDetected:     *light,
		VibrationDetected: *vibration,
		Date:              *date,
	}, true, nil
}

var _ Store = (*PostgresStore)(nil)

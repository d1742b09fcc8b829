package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"weather-monitor/models"
)

// Merger overlays the latest telemetry snapshot on a forecast
type Merger struct {
	store  Store
	logger *slog.Logger
}

// NewMerger creates a merger reading from store. A nil store disables merging.
func NewMerger(store Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{store: store, logger: logger}
}

// Merge reads the store once. When a complete snapshot is present the sensor
// fields of forecast.Current are overwritten on a copy and applied is true.
// Read failures, empty stores and partial snapshots return forecast unchanged.
func (m *Merger) Merge(ctx context.Context, forecast models.ForecastResponse) (merged models.ForecastResponse, applied bool) {
	if m == nil || m.store == nil {
		return forecast, false
	}

	snap, found, err := m.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, models.ErrPartialSnapshot) {
			m.logger.Warn("ignoring partial telemetry snapshot", "store", m.store.Name(), "error", err)
		} else {
			m.logger.Error("failed to read telemetry", "store", m.store.Name(), "error", err)
		}
		return forecast, false
	}
	if !found {
		m.logger.Debug("telemetry store is empty", "store", m.store.Name())
		return forecast, false
	}

	merged = forecast.Clone()
	snap.ApplyTo(&merged.Current)
	return merged, true
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"weather-monitor/models"
)

type fakeStore struct {
	snap  models.TelemetrySnapshot
	found bool
	err   error
	reads int
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	s.reads++
	return s.snap, s.found, s.err
}

func sampleForecast() models.ForecastResponse {
	return models.ForecastResponse{
		Location: models.Location{Name: "Islamabad", Country: "Pakistan"},
		Current: models.Current{
			TempC:      28,
			TempF:      82.4,
			Humidity:   35,
			PressureMb: 1009,
			IsDay:      1,
			Condition:  models.Condition{Text: "Sunny"},
		},
		Forecast: models.Forecast{ForecastDay: []models.ForecastDay{
			{Date: "2024-05-01", Day: models.DaySummary{AvgTempC: 27.1, Condition: models.Condition{Text: "Sunny"}}},
			{Date: "2024-05-02", Day: models.DaySummary{AvgTempC: 29.4, Condition: models.Condition{Text: "Rain"}}},
		}},
	}
}

func sampleSnapshot() models.TelemetrySnapshot {
	return models.TelemetrySnapshot{
		TemperatureC:      31.5,
		TemperatureF:      88.7,
		TemperatureK:      304.65,
		TemperatureR:      548.37,
		Humidity:          40,
		CODetected:        true,
		LightDetected:     true,
		VibrationDetected: false,
		Date:              "2024-05-01 12:30",
	}
}

func TestMergeOverwritesOnlySensorFields(t *testing.T) {
	store := &fakeStore{snap: sampleSnapshot(), found: true}
	m := NewMerger(store, nil)

	in := sampleForecast()
	out, applied := m.Merge(context.Background(), in)
	if !applied {
		t.Fatal("expected snapshot to be applied")
	}
	if store.reads != 1 {
		t.Fatalf("expected a single store read, got %d", store.reads)
	}

	// Expected = input with exactly the sensor fields replaced
	want := sampleForecast()
	want.Current.TempC = 31.5
	want.Current.TempF = 88.7
	want.Current.TempK = 304.65
	want.Current.TempR = 548.37
	want.Current.Humidity = 40
	want.Current.CODetected = true
	want.Current.LightDetected = true
	want.Current.VibrationDetected = false
	want.Current.Date = "2024-05-01 12:30"

	if !reflect.DeepEqual(out, want) {
		t.Fatalf("merged forecast mismatch\n got: %+v\nwant: %+v", out, want)
	}

	// The input value is left untouched
	if !reflect.DeepEqual(in, sampleForecast()) {
		t.Fatal("Merge mutated its input")
	}
}

func TestMergeIdentityWhenNoTelemetry(t *testing.T) {
	tests := []struct {
		name  string
		store Store
	}{
		{"empty store", &fakeStore{}},
		{"read failure", &fakeStore{err: errors.New("connection refused")}},
		{"partial snapshot", &fakeStore{err: fmt.Errorf("%w: missing humidity", models.ErrPartialSnapshot)}},
		{"nil store", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMerger(tt.store, nil)
			in := sampleForecast()
			out, applied := m.Merge(context.Background(), in)
			if applied {
				t.Fatal("nothing should have been applied")
			}
			if !reflect.DeepEqual(out, in) {
				t.Fatalf("expected identity, got %+v", out)
			}
		})
	}
}

func TestMergeOnNilMerger(t *testing.T) {
	var m *Merger
	in := sampleForecast()
	out, applied := m.Merge(context.Background(), in)
	if applied || !reflect.DeepEqual(out, in) {
		t.Fatal("nil merger must be a no-op")
	}
}

package models

import (
	"errors"
	"testing"
)

func TestForecastRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      ForecastRequest
		wantErr  error
		wantDays int
		wantCity string
	}{
		{"valid", ForecastRequest{City: "Islamabad", Days: 7}, nil, 7, "Islamabad"},
		{"trimmed", ForecastRequest{City: "  Lahore ", Days: 3}, nil, 3, "Lahore"},
		{"clamped", ForecastRequest{City: "Oslo", Days: 30}, nil, MaxForecastDays, "Oslo"},
		{"empty city", ForecastRequest{City: "   ", Days: 3}, ErrEmptyCity, 3, ""},
		{"zero days", ForecastRequest{City: "Oslo", Days: 0}, ErrInvalidDays, 0, "Oslo"},
		{"negative days", ForecastRequest{City: "Oslo", Days: -2}, ErrInvalidDays, -2, "Oslo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if req.Days != tt.wantDays || req.City != tt.wantCity {
				t.Fatalf("Validate() left %+v", req)
			}
		})
	}
}

func TestCloneDoesNotShareDays(t *testing.T) {
	orig := ForecastResponse{Forecast: Forecast{ForecastDay: []ForecastDay{{Date: "2024-05-01"}}}}
	clone := orig.Clone()
	clone.Forecast.ForecastDay[0].Date = "changed"
	if orig.Forecast.ForecastDay[0].Date != "2024-05-01" {
		t.Fatal("Clone shares the forecastday slice")
	}
}

func TestResult(t *testing.T) {
	ok := Success(42)
	if !ok.OK() || ok.Value != 42 || ok.Reason() != "" {
		t.Fatalf("unexpected success result %+v", ok)
	}
	failed := Failure[int](errors.New("boom"))
	if failed.OK() || failed.Value != 0 || failed.Reason() != "boom" {
		t.Fatalf("unexpected failure result %+v", failed)
	}
}

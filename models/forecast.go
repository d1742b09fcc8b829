package models

import (
	"errors"
	"strings"
)

// MaxForecastDays is the longest forecast weatherapi.com serves
const MaxForecastDays = 14

var (
	ErrEmptyCity   = errors.New("city name must not be empty")
	ErrInvalidDays = errors.New("days must be a positive integer")
)

// ForecastRequest identifies a forecast lookup
type ForecastRequest struct {
	City string `json:"city"`
	Days int    `json:"days"`
}

// Validate checks the request and clamps Days to MaxForecastDays
func (r *ForecastRequest) Validate() error {
	r.City = strings.TrimSpace(r.City)
	if r.City == "" {
		return ErrEmptyCity
	}
	if r.Days <= 0 {
		return ErrInvalidDays
	}
	if r.Days > MaxForecastDays {
		r.Days = MaxForecastDays
	}
	return nil
}

// Condition is the textual weather condition attached to current and daily data
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Code int    `json:"code,omitempty"`
}

// Location describes where a forecast applies
type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	TzID      string  `json:"tz_id,omitempty"`
	Localtime string  `json:"localtime,omitempty"`
}

// Current holds the current conditions. The sensor fields (TempK, TempR,
// the detector flags and Date) are only filled once telemetry is merged.
type Current struct {
	TempC       float64   `json:"temp_c"`
	TempF       float64   `json:"temp_f"`
	TempK       float64   `json:"temp_k,omitempty"`
	TempR       float64   `json:"temp_r,omitempty"`
	Humidity    float64   `json:"humidity"`
	PressureMb  float64   `json:"pressure_mb"`
	IsDay       int       `json:"is_day"`
	Condition   Condition `json:"condition"`
	LastUpdated string    `json:"last_updated,omitempty"`

	CODetected        bool   `json:"co_detected"`
	LightDetected     bool   `json:"light_detected"`
	VibrationDetected bool   `json:"vibration_detected"`
	Date              string `json:"date,omitempty"`
}

// Daytime reports whether the provider flagged the current conditions as daytime
func (c Current) Daytime() bool {
	return c.IsDay == 1
}

// DaySummary is the aggregate for one forecast day
type DaySummary struct {
	MaxTempC          float64   `json:"maxtemp_c"`
	MinTempC          float64   `json:"mintemp_c"`
	AvgTempC          float64   `json:"avgtemp_c"`
	AvgHumidity       float64   `json:"avghumidity"`
	MaxWindKph        float64   `json:"maxwind_kph,omitempty"`
	TotalPrecipMm     float64   `json:"totalprecip_mm,omitempty"`
	DailyChanceOfRain int       `json:"daily_chance_of_rain,omitempty"`
	Condition         Condition `json:"condition"`
}

// ForecastDay is a single entry of forecast.forecastday
type ForecastDay struct {
	Date      string     `json:"date"`
	DateEpoch int64      `json:"date_epoch,omitempty"`
	Day       DaySummary `json:"day"`
}

// Forecast wraps the ordered daily summaries, chronological as returned upstream
type Forecast struct {
	ForecastDay []ForecastDay `json:"forecastday"`
}

// ForecastResponse mirrors the weatherapi.com forecast.json body
type ForecastResponse struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
	Forecast Forecast `json:"forecast"`
}

// Clone returns a copy that shares no slices with r
func (r ForecastResponse) Clone() ForecastResponse {
	out := r
	if r.Forecast.ForecastDay != nil {
		out.Forecast.ForecastDay = make([]ForecastDay, len(r.Forecast.ForecastDay))
		copy(out.Forecast.ForecastDay, r.Forecast.ForecastDay)
	}
	return out
}

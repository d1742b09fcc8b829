package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPartialSnapshot is returned when a telemetry record lacks any of its fields
var ErrPartialSnapshot = errors.New("partial telemetry snapshot")

// TelemetrySnapshot is the latest flat sensor reading known to the telemetry store
type TelemetrySnapshot struct {
	TemperatureC      float64 `json:"temperature_c"`
	TemperatureF      float64 `json:"temperature_f"`
	TemperatureK      float64 `json:"temperature_k"`
	TemperatureR      float64 `json:"temperature_r"`
	Humidity          float64 `json:"humidity"`
	CODetected        bool    `json:"co_detected"`
	LightDetected     bool    `json:"light_detected"`
	VibrationDetected bool    `json:"vibration_detected"`
	Date              string  `json:"date"`
}

// ApplyTo overwrites the sensor-backed fields of c with the snapshot values
func (s TelemetrySnapshot) ApplyTo(c *Current) {
	c.TempC = s.TemperatureC
	c.TempF = s.TemperatureF
	c.TempK = s.TemperatureK
	c.TempR = s.TemperatureR
	c.Humidity = s.Humidity
	c.CODetected = s.CODetected
	c.LightDetected = s.LightDetected
	c.VibrationDetected = s.VibrationDetected
	c.Date = s.Date
}

// sensorFlag accepts JSON booleans as well as the 0/1 integers some boards emit
type sensorFlag bool

func (f *sensorFlag) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true", "1", "1.0":
		*f = true
	case "false", "0", "0.0":
		*f = false
	default:
		return fmt.Errorf("invalid detector value %s", b)
	}
	return nil
}

type rawSnapshot struct {
	TemperatureC      *float64    `json:"temperature_c"`
	TemperatureF      *float64    `json:"temperature_f"`
	TemperatureK      *float64    `json:"temperature_k"`
	TemperatureR      *float64    `json:"temperature_r"`
	Humidity          *float64    `json:"humidity"`
	CODetected        *sensorFlag `json:"co_detected"`
	LightDetected     *sensorFlag `json:"light_detected"`
	VibrationDetected *sensorFlag `json:"vibration_detected"`
	Date              *string     `json:"date"`
}

func (r rawSnapshot) missing() []string {
	var out []string
	check := func(name string, present bool) {
		if !present {
			out = append(out, name)
		}
	}
	check("temperature_c", r.TemperatureC != nil)
	check("temperature_f", r.TemperatureF != nil)
	check("temperature_k", r.TemperatureK != nil)
	check("temperature_r", r.TemperatureR != nil)
	check("humidity", r.Humidity != nil)
	check("co_detected", r.CODetected != nil)
	check("light_detected", r.LightDetected != nil)
	check("vibration_detected", r.VibrationDetected != nil)
	check("date", r.Date != nil)
	return out
}

// DecodeSnapshot parses a telemetry record. It reports found=false for an
// empty body or JSON null, and ErrPartialSnapshot when any field is absent.
func DecodeSnapshot(data []byte) (TelemetrySnapshot, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return TelemetrySnapshot{}, false, nil
	}

	var raw rawSnapshot
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return TelemetrySnapshot{}, false, fmt.Errorf("failed to parse telemetry snapshot: %w", err)
	}

	if missing := raw.missing(); len(missing) > 0 {
		return TelemetrySnapshot{}, false, fmt.Errorf("%w: missing %s", ErrPartialSnapshot, strings.Join(missing, ", "))
	}

	return TelemetrySnapshot{
		TemperatureC:      *raw.TemperatureC,
		TemperatureF:      *raw.TemperatureF,
		TemperatureK:      *raw.TemperatureK,
		TemperatureR:      *raw.TemperatureR,
		Humidity:          *raw.Humidity,
		CODetected:        bool(*raw.CODetected),
		LightDetected:     bool(*raw.LightDetected),
		VibrationDetected: bool(*raw.VibrationDetected),
		Date:              *raw.Date,
	}, true, nil
}

// SnapshotFromFields builds a snapshot from a column/field map such as a
// pivoted time-series record. Keys outside the snapshot are ignored.
func SnapshotFromFields(fields map[string]interface{}) (TelemetrySnapshot, bool, error) {
	if len(fields) == 0 {
		return TelemetrySnapshot{}, false, nil
	}

	filtered := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "_") || k == "result" || k == "table" {
			continue
		}
		filtered[k] = v
	}

	body, err := json.Marshal(filtered)
	if err != nil {
		return TelemetrySnapshot{}, false, fmt.Errorf("failed to encode telemetry fields: %w", err)
	}
	return DecodeSnapshot(body)
}

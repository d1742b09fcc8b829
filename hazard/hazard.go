// Package hazard derives alert conditions from merged current conditions.
package hazard

import "weather-monitor/models"

// LightStatus is the three-way light classification shown next to the forecast
type LightStatus string

const (
	LightDetected           LightStatus = "Light detected"
	ArtificialLightDetected LightStatus = "Artificial light detected"
	NoLightDetected         LightStatus = "No light detected"
)

// Assessment is the set of flags derived from one forecast cycle
type Assessment struct {
	FireHazard    bool        `json:"fire_hazard"`
	SeismicHazard bool        `json:"seismic_hazard"`
	Light         LightStatus `json:"light_status"`
}

// Any reports whether any hazard needs a notification
func (a Assessment) Any() bool {
	return a.FireHazard || a.SeismicHazard
}

// Evaluate derives the assessment straight from the fields, no smoothing
func Evaluate(c models.Current) Assessment {
	return Assessment{
		FireHazard:    c.CODetected,
		SeismicHazard: c.VibrationDetected,
		Light:         ClassifyLight(c.Daytime(), c.LightDetected),
	}
}

// ClassifyLight maps (daytime, light sensor) to a LightStatus
func ClassifyLight(isDay, lightDetected bool) LightStatus {
	switch {
	case lightDetected && isDay:
		return LightDetected
	case lightDetected:
		return ArtificialLightDetected
	default:
		return NoLightDetected
	}
}

package api

import (
	"sync"

	"weather-monitor/collector"
)

// ForecastStore holds the display state of the latest published forecast cycle
type ForecastStore struct {
	latest collector.Display
	set    bool
	mutex  sync.RWMutex
}

// NewForecastStore creates an empty store
func NewForecastStore() *ForecastStore {
	return &ForecastStore{}
}

// Publish replaces the held display unless it comes from an older cycle
func (s *ForecastStore) Publish(d collector.Display) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.set && d.Seq <= s.latest.Seq {
		return
	}
	s.latest = d
	s.set = true
}

// Latest returns the held display; ok is false before the first cycle
func (s *ForecastStore) Latest() (collector.Display, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.latest, s.set
}

var _ collector.Sink = (*ForecastStore)(nil)

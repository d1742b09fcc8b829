// Package telemetry reads the latest sensor snapshot from a realtime store
// and overlays it on forecast data.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"weather-monitor/models"
)

// Store is a read-once view of the single most recent telemetry snapshot.
// found is false when the store holds no value.
type Store interface {
	Latest(ctx context.Context) (snap models.TelemetrySnapshot, found bool, err error)
	Name() string
}

// MemoryStore holds a snapshot in process memory. It backs the MQTT store
// and serves as a fixed store for offline runs.
type MemoryStore struct {
	mu    sync.RWMutex
	snap  models.TelemetrySnapshot
	found bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Name returns the store name
func (s *MemoryStore) Name() string {
	return "memory"
}

// Set replaces the held snapshot
func (s *MemoryStore) Set(snap models.TelemetrySnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.found = true
	s.mu.Unlock()
}

// Clear drops the held snapshot
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.snap = models.TelemetrySnapshot{}
	s.found = false
	s.mu.Unlock()
}

// Latest returns the held snapshot, if any
func (s *MemoryStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.found, nil
}

// LazyStore constructs its backing store on first use and keeps it for the
// life of the process. A failed construction is retried on the next read.
type LazyStore struct {
	name   string
	open   func(ctx context.Context) (Store, error)
	logger *slog.Logger

	mu    sync.Mutex
	store Store
}

// NewLazyStore wraps a constructor into a process-wide handle
func NewLazyStore(name string, open func(ctx context.Context) (Store, error), logger *slog.Logger) *LazyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LazyStore{name: name, open: open, logger: logger}
}

// Name returns the configured backend name
func (l *LazyStore) Name() string {
	return l.name
}

func (l *LazyStore) get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}

	// The backend outlives the request that first touched it
	store, err := l.open(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry store %s: %w", l.name, err)
	}
	l.logger.Info("telemetry store initialised", "backend", l.name)
	l.store = store
	return store, nil
}

// Latest opens the backend if needed and reads through it
func (l *LazyStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	store, err := l.get(ctx)
	if err != nil {
		return models.TelemetrySnapshot{}, false, err
	}
	return store.Latest(ctx)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*LazyStore)(nil)
)

package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"weather-monitor/models"
)

// MQTTStore keeps the last snapshot published on a topic. Devices publish
// with the retain flag, so a fresh subscription receives the current value
// straight away; an empty retained payload clears it.
type MQTTStore struct {
	topic  string
	qos    byte
	memory *MemoryStore
	logger *slog.Logger
}

// NewMQTTStore creates a store fed by topic
func NewMQTTStore(topic string, logger *slog.Logger) *MQTTStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTStore{
		topic:  topic,
		qos:    1,
		memory: NewMemoryStore(),
		logger: logger,
	}
}

// Name returns the store name
func (s *MQTTStore) Name() string {
	return "mqtt"
}

// Subscribe registers the store on client. Call it from the broker's
// OnConnect hook so the subscription survives reconnects.
func (s *MQTTStore) Subscribe(client mqtt.Client) error {
	token := client.Subscribe(s.topic, s.qos, s.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to telemetry topic", "topic", s.topic)
	return nil
}

func (s *MQTTStore) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.ingest(msg.Payload())
}

func (s *MQTTStore) ingest(payload []byte) {
	snap, found, err := models.DecodeSnapshot(payload)
	if err != nil {
		s.logger.Warn("discarding telemetry message", "topic", s.topic, "error", err)
		return
	}
	if !found {
		s.memory.Clear()
		return
	}
	s.memory.Set(snap)
}

// Latest returns the last complete snapshot received
func (s *MQTTStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	return s.memory.Latest(ctx)
}

var _ Store = (*MQTTStore)(nil)

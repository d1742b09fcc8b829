// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ParseLevel maps a config level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// New creates a logger writing to out and to every extra writer.
// format is "json" or "text"; unknown levels fall back to info.
func New(level, format string, out io.Writer, extra ...io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)

	w := out
	if len(extra) > 0 {
		w = io.MultiWriter(append([]io.Writer{out}, extra...)...)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTWriter mirrors log lines to an MQTT topic. Publishing is
// fire-and-forget with QoS 0 so logging never blocks on the broker.
type MQTTWriter struct {
	client publisher
	topic  string
}

// NewMQTTWriter publishes to logs/<service>, or to topic when given
func NewMQTTWriter(client publisher, service, topic string) *MQTTWriter {
	if topic == "" {
		topic = fmt.Sprintf("logs/%s", service)
	}
	return &MQTTWriter{client: client, topic: topic}
}

// Topic returns the topic log lines go to
func (w *MQTTWriter) Topic() string {
	return w.topic
}

// Write publishes one log line
func (w *MQTTWriter) Write(p []byte) (int, error) {
	// slog reuses its buffer after Write returns
	payload := make([]byte, len(p))
	copy(payload, p)

	w.client.Publish(w.topic, 0, false, payload)
	return len(p), nil
}

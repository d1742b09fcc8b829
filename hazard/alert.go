package hazard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Kind identifies the hazard an alert is about
type Kind string

const (
	KindFire    Kind = "fire"
	KindSeismic Kind = "seismic"
)

// Alert is a user-facing danger notification
type Alert struct {
	Kind     Kind      `json:"kind"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Location string    `json:"location"`
	RaisedAt time.Time `json:"raised_at"`
}

const alertTitle = "Danger Alert"

// Alerts builds the notifications for an assessment, fire first
func Alerts(a Assessment, location string, at time.Time) []Alert {
	var out []Alert
	if a.FireHazard {
		out = append(out, Alert{
			Kind:     KindFire,
			Title:    alertTitle,
			Message:  "Carbon Monoxide detected! Possible fire hazard. Please take immediate action.",
			Location: location,
			RaisedAt: at,
		})
	}
	if a.SeismicHazard {
		out = append(out, Alert{
			Kind:     KindSeismic,
			Title:    alertTitle,
			Message:  "Vibration detected! Possible earthquake. Please take immediate action.",
			Location: location,
			RaisedAt: at,
		})
	}
	return out
}

// Notifier delivers alerts to the user
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the alert at warning level
func (n LogNotifier) Notify(ctx context.Context, alert Alert) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, alert.Title, "kind", alert.Kind, "location", alert.Location, "message", alert.Message)
	return nil
}

// MQTTNotifier publishes alerts as JSON to <prefix>/<kind>
type MQTTNotifier struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// NewMQTTNotifier creates a notifier publishing under prefix
func NewMQTTNotifier(client mqtt.Client, prefix string) *MQTTNotifier {
	return &MQTTNotifier{client: client, prefix: prefix, timeout: 5 * time.Second}
}

// Notify publishes the alert with QoS 1 and waits for the broker ack
func (n *MQTTNotifier) Notify(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", n.prefix, alert.Kind)
	token := n.client.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.timeout):
		return fmt.Errorf("timed out publishing alert to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", topic, err)
	}
	return nil
}

// MultiNotifier fans an alert out to several notifiers
type MultiNotifier []Notifier

// Notify delivers to every notifier and joins their errors
func (m MultiNotifier) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gate suppresses repeats of the same alert kind for a location within a
// cooldown window. A zero cooldown lets every alert through, so a hazard
// that persists is re-announced on every cycle.
type Gate struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewGate creates a gate with the given cooldown
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether the alert should be delivered and records it if so
func (g *Gate) Allow(alert Alert) bool {
	if g == nil || g.cooldown <= 0 {
		return true
	}

	key := alert.Location + "|" + string(alert.Kind)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[key]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.last[key] = now
	return true
}

// Reset forgets the alert history for kind at location, so the next
// occurrence after the hazard clears is announced immediately
func (g *Gate) Reset(location string, kind Kind) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.last, location+"|"+string(kind))
	g.mu.Unlock()
}

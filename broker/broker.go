// Package broker connects to the MQTT broker shared by the telemetry feed,
// hazard alerts and the log mirror.
package broker

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options configures the broker connection
type Options struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
	// OnConnect runs after every (re)connect, in its own goroutine; use it to (re)subscribe
	OnConnect func(mqtt.Client)
}

// Connect dials the broker and waits for the connection to complete
func Connect(opts Options) (mqtt.Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	if opts.OnConnect != nil {
		clientOpts.SetOnConnectHandler(opts.OnConnect)
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connection to %s failed: %w", opts.Broker, err)
	}
	return client, nil
}

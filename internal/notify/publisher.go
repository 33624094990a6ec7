package notify

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher delivers a payload to a single topic on the messaging channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Close releases the channel connection. Safe to call if already closed.
	Close() error
}

// MQTTPublisher implements Publisher over an MQTT broker. The client connects
// once at startup and is reused across requests.
type MQTTPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker and returns a publisher whose
// per-publish token wait is bounded by timeout.
func NewMQTTPublisher(brokerURL, clientID string, timeout time.Duration) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, err)
	}
	return &MQTTPublisher{client: client, timeout: timeout}, nil
}

// Publish sends the payload to topic at QoS 1 and waits for the broker ack.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publish to %s: no ack after %s", topic, p.timeout)
	}
}

// Close disconnects from the broker, allowing in-flight publishes a short
// window to complete.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

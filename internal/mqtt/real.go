package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/owmaster/internal/model"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	if clientID == "" {
		clientID = "owmaster"
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{client: client}, nil
}

// PublishReading sends a channel sample to the MQTT broker.
func (p *RealPublisher) PublishReading(ch *model.Channel, value float64, ts time.Time) error {
	payload, err := FormatReadingPayload(ch, value, ts)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(ReadingTopic(ch), payload)
}

// PublishTransition sends a state transition to the MQTT broker.
func (p *RealPublisher) PublishTransition(ev model.TransitionEvent) error {
	payload, err := FormatTransitionPayload(ev)
	if err != nil {
		return fmt.Errorf("format transition payload: %w", err)
	}
	return p.publish(EventTopic(ev.Channel), payload)
}

func (p *RealPublisher) publish(topic string, payload []byte) error {
	// QoS 0 (at-most-once), not retained
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

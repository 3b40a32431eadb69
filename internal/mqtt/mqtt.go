// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// TopicPrefix is the root of all topics published by the daemon.
const TopicPrefix = "owmaster"

// ReadingTopic returns the topic for a channel's raw readings.
func ReadingTopic(ch *model.Channel) string {
	return fmt.Sprintf("%s/reading/%s/%s", TopicPrefix, ch.Device.ID, ch.Name)
}

// EventTopic returns the topic for a channel's state transitions.
func EventTopic(ch *model.Channel) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, ch.Device.ID, ch.Name)
}

// Publisher publishes channel readings and transitions.
type Publisher interface {
	// PublishReading sends one channel sample to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(ch *model.Channel, value float64, ts time.Time) error

	// PublishTransition sends one state transition to the broker.
	PublishTransition(ev model.TransitionEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ReadingPayload is the JSON body published for each sample.
type ReadingPayload struct {
	Device    string  `json:"device"`
	Alias     string  `json:"alias,omitempty"`
	Channel   string  `json:"channel"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	State     string  `json:"state,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// TransitionPayload is the JSON body published for each state change.
type TransitionPayload struct {
	ID        string `json:"id"`
	Device    string `json:"device"`
	Alias     string `json:"alias,omitempty"`
	Channel   string `json:"channel"`
	From      string `json:"from"`
	To        string `json:"to"`
	Organic   bool   `json:"organic"`
	Timestamp string `json:"timestamp"`
}

// FormatReadingPayload creates the JSON payload for a channel sample.
func FormatReadingPayload(ch *model.Channel, value float64, ts time.Time) ([]byte, error) {
	payload := ReadingPayload{
		Device:    string(ch.Device.ID),
		Alias:     ch.Device.Alias,
		Channel:   ch.Name,
		Value:     value,
		Unit:      ch.Unit,
		State:     string(ch.State),
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

// FormatTransitionPayload creates the JSON payload for a state transition.
func FormatTransitionPayload(ev model.TransitionEvent) ([]byte, error) {
	payload := TransitionPayload{
		ID:        ev.ID,
		Device:    string(ev.Channel.Device.ID),
		Alias:     ev.Channel.Device.Alias,
		Channel:   ev.Channel.Name,
		From:      string(ev.From),
		To:        string(ev.To),
		Organic:   ev.Organic,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

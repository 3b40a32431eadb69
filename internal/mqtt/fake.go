package mqtt

import (
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// FakeReading records one PublishReading call.
type FakeReading struct {
	Channel   *model.Channel
	Value     float64
	Timestamp time.Time
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Readings contains all channel samples that were published.
	Readings []FakeReading

	// Transitions contains all state transitions that were published.
	Transitions []model.TransitionEvent

	// PublishError, if set, will be returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReading records the sample.
func (f *FakePublisher) PublishReading(ch *model.Channel, value float64, ts time.Time) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Readings = append(f.Readings, FakeReading{Channel: ch, Value: value, Timestamp: ts})
	return nil
}

// PublishTransition records the transition.
func (f *FakePublisher) PublishTransition(ev model.TransitionEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Transitions = append(f.Transitions, ev)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Readings = nil
	f.Transitions = nil
	f.Closed = false
	f.PublishError = nil
}

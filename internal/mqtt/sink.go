package mqtt

import (
	"log/slog"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// Sink adapts a Publisher to best-effort delivery. Broker failures are
// logged and never propagate to the polling loop.
type Sink struct {
	pub Publisher
	log *slog.Logger
}

func NewSink(pub Publisher, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{pub: pub, log: log}
}

func (s *Sink) RecordReading(ch *model.Channel, value float64, ts time.Time) {
	if err := s.pub.PublishReading(ch, value, ts); err != nil {
		s.log.Warn("mqtt reading publish failed", "channel", ch.Address(), "err", err)
	}
}

func (s *Sink) RecordTransition(ev model.TransitionEvent) {
	if err := s.pub.PublishTransition(ev); err != nil {
		s.log.Warn("mqtt transition publish failed", "channel", ev.Channel.Address(), "err", err)
	}
}

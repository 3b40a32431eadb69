// Package track maintains the last-known logical state per channel and
// emits transition events. Organic events fire only on an actual state
// change; synthetic events (Organic=false) replay every channel's arrival
// into its current state after process start or a bus reset, so that
// include_reset rules fire identically in both cases.
package track

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/owmaster/internal/model"
)

// Tracker mutates Channel.State/LastRaw/LastSeen; callers must hold the
// engine cycle lock.
type Tracker struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{log: log}
}

// Observe records the classified state for a channel and returns a
// transition event if one should be emitted, nil otherwise.
//
// The first classified state of a channel arrives as a synthetic event:
// the process has no way to know whether the state was entered just now or
// long before startup. Re-observing the current state emits nothing.
func (t *Tracker) Observe(ch *model.Channel, next model.State, raw float64, ts time.Time) *model.TransitionEvent {
	ch.LastRaw = raw
	ch.LastSeen = ts

	if next == model.StateUnknown {
		// Classifier could not place the reading; no transition.
		return nil
	}

	prev := ch.State
	if next == prev {
		return nil
	}

	ch.State = next

	if prev == model.StateUnknown {
		return t.event(ch, prev, next, ts, false)
	}

	// The release edge of a momentary input carries no meaning; only the
	// trigged edge dispatches.
	if ch.Mode == model.ModeMomentary && prev == model.StateTrigged && next == model.StateOff {
		return nil
	}

	return t.event(ch, prev, next, ts, true)
}

// Replay emits a synthetic transition for every channel that has a known
// state, re-announcing its arrival into that state. Used on explicit bus
// or software reset signals.
func (t *Tracker) Replay(channels []*model.Channel, ts time.Time) []model.TransitionEvent {
	var out []model.TransitionEvent
	for _, ch := range channels {
		if ch.State == model.StateUnknown {
			continue
		}
		ev := t.event(ch, ch.State, ch.State, ts, false)
		out = append(out, *ev)
	}
	return out
}

func (t *Tracker) event(ch *model.Channel, from, to model.State, ts time.Time, organic bool) *model.TransitionEvent {
	ev := &model.TransitionEvent{
		ID:        uuid.NewString(),
		Channel:   ch,
		From:      from,
		To:        to,
		Timestamp: ts,
		Organic:   organic,
	}
	t.log.Debug("transition",
		"event_id", ev.ID,
		"channel", ch.Address(),
		"from", string(from),
		"to", string(to),
		"organic", organic)
	return ev
}

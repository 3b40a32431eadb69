// Package classify turns raw channel readings into logical states.
//
// Digital channels map the raw level through the configured polarity.
// Analog channels are matched against their state template's bands, with a
// hysteresis tie-break for deliberately overlapping bands and a settle
// window that suppresses flickering transitions into non-guess bands: if
// we cannot properly register a transition quickly enough, we do not guess.
package classify

import (
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// DefaultSettleWindow bounds how recently a channel may have changed state
// before a further non-guess transition is considered flicker.
const DefaultSettleWindow = 500 * time.Millisecond

// Classifier is not safe for concurrent use; the engine serializes cycles.
type Classifier struct {
	settle time.Duration

	// timestamps of recent state changes per analog channel, trimmed to
	// the settle window
	recent map[model.ChannelKey][]time.Time
}

// New creates a classifier with the given settle window. A zero window
// disables flicker suppression.
func New(settle time.Duration) *Classifier {
	return &Classifier{
		settle: settle,
		recent: make(map[model.ChannelKey][]time.Time),
	}
}

// Classify maps a raw reading to the channel's new logical state. It never
// returns StateUnknown once a previous state exists: a reading outside all
// known bands keeps the previous state, so it can never itself trigger a
// rule.
func (c *Classifier) Classify(ch *model.Channel, raw float64, now time.Time) model.State {
	switch ch.Kind {
	case model.KindAnalogIn:
		return c.classifyAnalog(ch, raw, now)
	default:
		return classifyDigital(ch, raw)
	}
}

func classifyDigital(ch *model.Channel, raw float64) model.State {
	active := levelOf(raw) == ch.ActiveLevel()

	if ch.Kind == model.KindDigitalIn && ch.Mode == model.ModeMomentary {
		if active {
			return model.StateTrigged
		}
		return model.StateOff
	}

	if active {
		return model.StateOn
	}
	return model.StateOff
}

func (c *Classifier) classifyAnalog(ch *model.Channel, raw float64, now time.Time) model.State {
	prev := ch.State
	matches := ch.Template.Match(raw)

	if len(matches) == 0 {
		// Outside every band: no transition.
		return prev
	}

	band := pick(matches, prev)

	if band.Name == prev {
		return prev
	}

	if !band.Guess && c.flickering(ch.Key(), now) {
		return prev
	}

	c.markChange(ch.Key(), now)
	return band.Name
}

// pick resolves multiple matching bands. Overlap only occurs in
// deliberately ambiguous boundary regions; we stay in the current band
// when possible (hysteresis), then avoid guessing, then take the narrower
// range.
func pick(matches []model.Band, prev model.State) model.Band {
	if len(matches) == 1 {
		return matches[0]
	}

	for _, b := range matches {
		if b.Name == prev {
			return b
		}
	}

	// Template validation guarantees at most one non-guess band matches.
	var sure *model.Band
	for i := range matches {
		if !matches[i].Guess {
			if sure == nil {
				sure = &matches[i]
			} else {
				sure = nil
				break
			}
		}
	}
	if sure != nil {
		return *sure
	}

	narrowest := matches[0]
	for _, b := range matches[1:] {
		if b.Width() < narrowest.Width() {
			narrowest = b
		}
	}
	return narrowest
}

// flickering reports whether the channel already changed state more than
// once within the settle window.
func (c *Classifier) flickering(key model.ChannelKey, now time.Time) bool {
	if c.settle <= 0 {
		return false
	}
	changes := c.recent[key]
	n := 0
	for _, t := range changes {
		if now.Sub(t) < c.settle {
			n++
		}
	}
	return n > 1
}

func (c *Classifier) markChange(key model.ChannelKey, now time.Time) {
	if c.settle <= 0 {
		return
	}
	kept := c.recent[key][:0]
	for _, t := range c.recent[key] {
		if now.Sub(t) < c.settle {
			kept = append(kept, t)
		}
	}
	c.recent[key] = append(kept, now)
}

func levelOf(raw float64) int {
	if raw != 0 {
		return 1
	}
	return 0
}

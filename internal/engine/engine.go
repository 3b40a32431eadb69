// Package engine runs the supervision loop: classify samples, track
// transitions, evaluate rules and dispatch actions.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/owmaster/internal/action"
	"github.com/sweeney/owmaster/internal/classify"
	"github.com/sweeney/owmaster/internal/model"
	"github.com/sweeney/owmaster/internal/rules"
	"github.com/sweeney/owmaster/internal/track"
)

// Source produces one batch of raw samples per scan cycle.
type Source interface {
	Scan(mode model.ScanMode) (model.Batch, error)
}

// Sink consumes readings and transitions. Delivery is best-effort;
// implementations must not block the scan loop on failure.
type Sink interface {
	RecordReading(ch *model.Channel, value float64, ts time.Time)
	RecordTransition(ev model.TransitionEvent)
}

// Monitor counts supervision outcomes. Implementations must be cheap.
type Monitor interface {
	DispatchAttempted(failed bool)
	SampleDropped()
	CycleCompleted(mode string)
}

type nopMonitor struct{}

func (nopMonitor) DispatchAttempted(bool) {}
func (nopMonitor) SampleDropped()         {}
func (nopMonitor) CycleCompleted(string)  {}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	Cycles           uint64 `json:"cycles"`
	Samples          uint64 `json:"samples"`
	Dropped          uint64 `json:"dropped"`
	Transitions      uint64 `json:"transitions"`
	Dispatches       uint64 `json:"dispatches"`
	DispatchFailures uint64 `json:"dispatch_failures"`
}

// ChannelStatus describes one channel for the status endpoint.
type ChannelStatus struct {
	Device   string    `json:"device"`
	Alias    string    `json:"alias,omitempty"`
	Channel  string    `json:"channel"`
	Kind     string    `json:"kind"`
	State    string    `json:"state"`
	Value    float64   `json:"value"`
	LastSeen time.Time `json:"last_seen"`
}

// Status is the full engine view served over HTTP.
type Status struct {
	Stats    Stats           `json:"stats"`
	Channels []ChannelStatus `json:"channels"`
}

// Engine owns the channel state machine. All mutation happens inside
// Cycle under the engine lock; Status takes the same lock.
type Engine struct {
	inv        *model.Inventory
	classifier *classify.Classifier
	tracker    *track.Tracker
	evaluator  *rules.Evaluator
	dispatcher *action.Dispatcher
	sinks      []Sink
	monitor    Monitor
	log        *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Config collects the engine collaborators.
type Config struct {
	Inventory  *model.Inventory
	Classifier *classify.Classifier
	Tracker    *track.Tracker
	Evaluator  *rules.Evaluator
	Dispatcher *action.Dispatcher
	Sinks      []Sink
	Monitor    Monitor
	Log        *slog.Logger
}

func New(cfg Config) *Engine {
	if cfg.Monitor == nil {
		cfg.Monitor = nopMonitor{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Engine{
		inv:        cfg.Inventory,
		classifier: cfg.Classifier,
		tracker:    cfg.Tracker,
		evaluator:  cfg.Evaluator,
		dispatcher: cfg.Dispatcher,
		sinks:      cfg.Sinks,
		monitor:    cfg.Monitor,
		log:        cfg.Log,
	}
}

// Cycle processes one scan batch: classification, transition tracking,
// fan-out and action dispatch, in that order per sample.
func (e *Engine) Cycle(batch model.Batch, mode model.ScanMode, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []model.TransitionEvent
	for _, sample := range batch.Samples {
		ch := e.inv.Channel(sample.Device, sample.Channel)
		if ch == nil {
			e.log.Warn("sample for unknown channel",
				"device", sample.Device, "channel", sample.Channel)
			e.monitor.SampleDropped()
			e.stats.Dropped++
			continue
		}
		if insane(ch, sample.Value) {
			e.log.Warn("sample outside sanity bounds",
				"channel", ch.Address(), "value", sample.Value)
			e.monitor.SampleDropped()
			e.stats.Dropped++
			continue
		}
		e.stats.Samples++

		state := e.classifier.Classify(ch, sample.Value, sample.Timestamp)
		if ev := e.tracker.Observe(ch, state, sample.Value, sample.Timestamp); ev != nil {
			events = append(events, *ev)
		}
		// Readings are recorded after Observe so the channel's logical
		// state matches the sample that produced it.
		for _, s := range e.sinks {
			s.RecordReading(ch, sample.Value, sample.Timestamp)
		}
	}

	if batch.Reset {
		e.log.Info("source reset, replaying channel states")
		events = append(events, e.tracker.Replay(e.inv.Channels(), now)...)
	}

	for _, ev := range events {
		e.stats.Transitions++
		for _, s := range e.sinks {
			s.RecordTransition(ev)
		}
		// Snapshot is taken per event so guards see the states left
		// by earlier dispatches in the same batch.
		snap := model.SnapshotOf(e.inv)
		rule, selected := e.evaluator.Evaluate(ev, snap, now)
		if len(selected) == 0 {
			continue
		}
		for _, res := range e.dispatcher.Dispatch(rule, selected, now) {
			e.stats.Dispatches++
			failed := res.Err != nil
			if failed {
				e.stats.DispatchFailures++
			}
			e.monitor.DispatchAttempted(failed)
		}
	}

	e.stats.Cycles++
	e.monitor.CycleCompleted(mode.String())
}

// insane reports whether an analog sample violates the device's
// configured plausibility bounds.
func insane(ch *model.Channel, value float64) bool {
	if ch.Kind != model.KindAnalogIn {
		return false
	}
	dev := ch.Device
	if dev.Min != nil && value < *dev.Min {
		return true
	}
	if dev.Max != nil && value > *dev.Max {
		return true
	}
	return false
}

// Status returns a copy of the counters and per-channel states.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{Stats: e.stats}
	for _, ch := range e.inv.Channels() {
		st.Channels = append(st.Channels, ChannelStatus{
			Device:   string(ch.Device.ID),
			Alias:    ch.Device.Alias,
			Channel:  ch.Name,
			Kind:     ch.Kind.String(),
			State:    string(ch.State),
			Value:    ch.LastRaw,
			LastSeen: ch.LastSeen,
		})
	}
	return st
}

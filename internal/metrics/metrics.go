// Package metrics exposes channel readings and supervision counters to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/owmaster/internal/model"
)

// Recorder holds the Prometheus collectors for the daemon.
type Recorder struct {
	reading     *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	dispatches  prometheus.Counter
	dispatchErr prometheus.Counter
	dropped     prometheus.Counter
	cycles      *prometheus.CounterVec
}

// New registers the collectors with reg and returns the recorder.
// Pass prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "owmaster_channel_value",
			Help: "Last accepted raw value per channel.",
		}, []string{"device", "alias", "channel"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owmaster_transitions_total",
			Help: "State transitions emitted per channel.",
		}, []string{"device", "alias", "channel", "to"}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "owmaster_actions_dispatched_total",
			Help: "Actions attempted by the dispatcher.",
		}),
		dispatchErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "owmaster_action_failures_total",
			Help: "Actions that returned an error.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "owmaster_samples_dropped_total",
			Help: "Samples rejected by sanity bounds or unknown addressing.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owmaster_scan_cycles_total",
			Help: "Completed scan cycles by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(r.reading, r.transitions, r.dispatches, r.dispatchErr, r.dropped, r.cycles)
	return r
}

func (r *Recorder) RecordReading(ch *model.Channel, value float64, ts time.Time) {
	r.reading.WithLabelValues(string(ch.Device.ID), ch.Device.Alias, ch.Name).Set(value)
}

func (r *Recorder) RecordTransition(ev model.TransitionEvent) {
	ch := ev.Channel
	r.transitions.WithLabelValues(string(ch.Device.ID), ch.Device.Alias, ch.Name, string(ev.To)).Inc()
}

func (r *Recorder) DispatchAttempted(failed bool) {
	r.dispatches.Inc()
	if failed {
		r.dispatchErr.Inc()
	}
}

func (r *Recorder) SampleDropped() {
	r.dropped.Inc()
}

func (r *Recorder) CycleCompleted(mode string) {
	r.cycles.WithLabelValues(mode).Inc()
}

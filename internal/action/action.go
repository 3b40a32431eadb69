// Package action executes the outcomes selected for a channel transition:
// writing output channels on the bus and spawning shell commands.
package action

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/owmaster/internal/rules"
)

// BusWriter sets the level of an output channel. Implementations must be
// safe to call from the dispatch goroutine only.
type BusWriter interface {
	Write(device, channel string, value bool) error
}

// Runner starts a shell command without waiting for it to finish.
type Runner interface {
	Spawn(command string) error
}

// Result records one dispatch attempt.
type Result struct {
	Action rules.Action
	Err    error
}

// Dispatcher drives the selected actions of a rule. A failing action is
// logged and does not stop the remaining actions in the list.
type Dispatcher struct {
	bus BusWriter
	run Runner
	log *slog.Logger
}

func NewDispatcher(bus BusWriter, run Runner, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{bus: bus, run: run, log: log}
}

// Dispatch executes actions in order. The rule is stamped as having run as
// soon as at least one action is attempted, regardless of outcome, so that
// debounce guards measure from the attempt.
func (d *Dispatcher) Dispatch(rule *rules.Rule, actions []rules.Action, now time.Time) []Result {
	if len(actions) == 0 {
		return nil
	}
	rule.MarkDispatched(now)

	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		err := d.execute(a)
		if err != nil {
			d.log.Error("action failed", "action", a.String(), "err", err)
		} else {
			d.log.Info("action dispatched", "action", a.String())
		}
		results = append(results, Result{Action: a, Err: err})
	}
	return results
}

func (d *Dispatcher) execute(a rules.Action) error {
	switch a.Kind {
	case rules.ActionSetChannel:
		if d.bus == nil {
			return fmt.Errorf("no bus writer configured")
		}
		if a.Target == nil {
			return fmt.Errorf("set_channel action has no target")
		}
		return d.bus.Write(string(a.Target.Device.ID), a.Target.Name, a.Value)
	case rules.ActionRunCommand:
		if d.run == nil {
			return fmt.Errorf("no command runner configured")
		}
		return d.run.Spawn(a.Command)
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}

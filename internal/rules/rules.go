// Package rules evaluates per-transition trigger rules. A rule set is
// attached to a (channel, to-state) pair and holds an optional set-level
// guard plus an ordered list of actions, each with its own optional guard
// and include_reset flag.
package rules

import (
	"fmt"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// DefaultNeverRan is the since_last_run sentinel for rules that have not
// dispatched yet: large enough that any "since_last_run > n" debounce
// guard passes on first use.
const DefaultNeverRan = float64(1 << 40)

// ActionKind tags the action variant.
type ActionKind int

const (
	ActionSetChannel ActionKind = iota
	ActionRunCommand
)

// Action is stateless; side effects happen only at dispatch time.
type Action struct {
	Kind ActionKind

	// set_channel
	Target *model.Channel
	Value  bool // true = on/active

	// run_command
	Command string

	// When gates this action alone; nil means only the set-level guard
	// applies. IncludeReset actions also fire on synthetic transitions.
	When         Expr
	IncludeReset bool
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSetChannel:
		v := "off"
		if a.Value {
			v = "on"
		}
		return fmt.Sprintf("set_channel[%s = %s]", a.Target.Address(), v)
	case ActionRunCommand:
		return fmt.Sprintf("run_command[%s]", a.Command)
	}
	return "unknown"
}

// Key addresses a rule set: the channel plus the state being entered.
type Key struct {
	Device  model.DeviceID
	Channel string
	State   model.State
}

// Rule is the configured rule set for one Key. The set-level When, if
// present, gates the entire action list: when it evaluates false no action
// executes, regardless of per-action guards. IncludeReset at set level
// retains the whole list on synthetic transitions.
//
// lastRun is the rule's debounce state: the time of the last dispatch in
// which at least one action was attempted. It measures "last time we
// tried", not "last time we succeeded", and is not persisted.
type Rule struct {
	Key          Key
	When         Expr
	IncludeReset bool
	Actions      []Action

	lastRun time.Time
	hasRun  bool
}

// MarkDispatched stamps the debounce state. Called by the dispatcher after
// attempting a non-empty action selection.
func (r *Rule) MarkDispatched(now time.Time) {
	r.lastRun = now
	r.hasRun = true
}

// SinceLastRun returns seconds since the rule last dispatched, or the
// sentinel if it never has.
func (r *Rule) SinceLastRun(now time.Time, sentinel float64) float64 {
	if !r.hasRun {
		return sentinel
	}
	return now.Sub(r.lastRun).Seconds()
}

// Table holds every configured rule, keyed by channel and to-state.
type Table struct {
	rules map[Key]*Rule
}

func NewTable() *Table {
	return &Table{rules: make(map[Key]*Rule)}
}

// Add rejects duplicate keys; one rule set per (channel, state).
func (t *Table) Add(r *Rule) error {
	if _, dup := t.rules[r.Key]; dup {
		return fmt.Errorf("duplicate rule for %s.%s state %q", r.Key.Device, r.Key.Channel, r.Key.State)
	}
	t.rules[r.Key] = r
	return nil
}

func (t *Table) Len() int { return len(t.rules) }

// Rules returns all rules (iteration order unspecified).
func (t *Table) Rules() []*Rule {
	out := make([]*Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	return out
}

// Evaluator selects the actions to execute for a transition event.
// Evaluation is a pure function of (event, snapshot, debounce state, now):
// it performs no side effects and consults no hidden timers.
type Evaluator struct {
	table    *Table
	neverRan float64
}

func NewEvaluator(table *Table) *Evaluator {
	return &Evaluator{table: table, neverRan: DefaultNeverRan}
}

// Evaluate returns the matched rule and the ordered subset of its actions
// to dispatch. The rule is nil when nothing is configured for the event;
// the action slice may be empty when guards or reset filtering dropped
// everything.
func (e *Evaluator) Evaluate(ev model.TransitionEvent, snap Snapshot, now time.Time) (*Rule, []Action) {
	rule := e.table.rules[Key{
		Device:  ev.Channel.Device.ID,
		Channel: ev.Channel.Name,
		State:   ev.To,
	}]
	if rule == nil {
		return nil, nil
	}

	// Synthetic transitions only retain actions explicitly marked for
	// replay; filtering happens before any guard runs.
	candidates := rule.Actions
	if !ev.Organic && !rule.IncludeReset {
		candidates = nil
		for _, a := range rule.Actions {
			if a.IncludeReset {
				candidates = append(candidates, a)
			}
		}
		if len(candidates) == 0 {
			return rule, nil
		}
	}

	env := Env{
		Snapshot:     snap,
		SinceLastRun: rule.SinceLastRun(now, e.neverRan),
	}

	// The set-level guard short-circuits the whole list.
	if rule.When != nil && !rule.When.Eval(env).Truthy() {
		return rule, nil
	}

	var selected []Action
	for _, a := range candidates {
		if a.When != nil && !a.When.Eval(env).Truthy() {
			continue
		}
		selected = append(selected, a)
	}
	return rule, selected
}

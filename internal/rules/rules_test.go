package rules

import (
	"testing"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

func testChannel() *model.Channel {
	dev := &model.Device{ID: "12.A2D36C000000", Alias: "hall"}
	ch := &model.Channel{Device: dev, Name: "6", Kind: model.KindDigitalIn, Mode: model.ModeToggle}
	dev.Channels = []*model.Channel{ch}
	return ch
}

func targetChannel() *model.Channel {
	dev := &model.Device{ID: "3A.010101010101", Alias: "relays"}
	ch := &model.Channel{Device: dev, Name: "A", Kind: model.KindDigitalOut}
	dev.Channels = []*model.Channel{ch}
	return ch
}

func mustParse(t *testing.T, src string) Expr {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return e
}

func event(ch *model.Channel, to model.State, organic bool) model.TransitionEvent {
	return model.TransitionEvent{
		ID:      "test-event",
		Channel: ch,
		From:    model.StateOff,
		To:      to,
		Organic: organic,
	}
}

func key(ch *model.Channel, st model.State) Key {
	return Key{Device: ch.Device.ID, Channel: ch.Name, State: st}
}

func TestEvaluateNoRuleConfigured(t *testing.T) {
	ch := testChannel()
	ev := NewEvaluator(NewTable())

	rule, actions := ev.Evaluate(event(ch, model.StateOn, true), nil, time.Now())
	if rule != nil || actions != nil {
		t.Errorf("expected nothing for unconfigured channel, got %v %v", rule, actions)
	}
}

func TestEvaluateOrderedActions(t *testing.T) {
	ch := testChannel()
	tgt := targetChannel()
	table := NewTable()
	r := &Rule{
		Key: key(ch, model.StateOn),
		Actions: []Action{
			{Kind: ActionSetChannel, Target: tgt, Value: true},
			{Kind: ActionRunCommand, Command: "logger pio-on"},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, actions := NewEvaluator(table).Evaluate(event(ch, model.StateOn, true), nil, time.Now())
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	// Declaration order is the execution order.
	if actions[0].Kind != ActionSetChannel || actions[1].Kind != ActionRunCommand {
		t.Errorf("actions out of order: %v", actions)
	}
}

func TestEvaluateSetLevelGuardShortCircuits(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key:  key(ch, model.StateOn),
		When: mustParse(t, "hall[4].value == 1"),
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "true"},
			// Even a guard that would pass on its own is gated by the set.
			{Kind: ActionRunCommand, Command: "echo", When: mustParse(t, "1 == 1")},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ev := NewEvaluator(table)

	// Guard references channel 4, which has no recorded state: false.
	rule, actions := ev.Evaluate(event(ch, model.StateOn, true), mapSnapshot{}, time.Now())
	if rule == nil {
		t.Fatal("rule should match")
	}
	if len(actions) != 0 {
		t.Errorf("set-level guard must gate the whole list, got %d actions", len(actions))
	}

	snap := mapSnapshot{"hall.4": {State: model.StateOn, Value: 1}}
	_, actions = ev.Evaluate(event(ch, model.StateOn, true), snap, time.Now())
	if len(actions) != 2 {
		t.Errorf("expected 2 actions with passing set guard, got %d", len(actions))
	}
}

func TestEvaluatePerActionGuardsIndependent(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key: key(ch, model.StateOn),
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "a", When: mustParse(t, "hall[4].value == 1")},
			{Kind: ActionRunCommand, Command: "b"},
			{Kind: ActionRunCommand, Command: "c", When: mustParse(t, "hall[4].value == 0")},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	snap := mapSnapshot{"hall.4": {State: model.StateOn, Value: 1}}
	_, actions := NewEvaluator(table).Evaluate(event(ch, model.StateOn, true), snap, time.Now())
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Command != "a" || actions[1].Command != "b" {
		t.Errorf("wrong selection: %v", actions)
	}
}

func TestEvaluateIncludeResetFiltering(t *testing.T) {
	ch := testChannel()
	tgt := targetChannel()
	table := NewTable()
	r := &Rule{
		Key: key(ch, model.StateOn),
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "mail -s alert root"},
			{Kind: ActionSetChannel, Target: tgt, Value: true, IncludeReset: true},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ev := NewEvaluator(table)

	// Organic: both actions fire.
	_, actions := ev.Evaluate(event(ch, model.StateOn, true), nil, time.Now())
	if len(actions) != 2 {
		t.Fatalf("organic: expected 2 actions, got %d", len(actions))
	}

	// Synthetic: only the include_reset action survives.
	_, actions = ev.Evaluate(event(ch, model.StateOn, false), nil, time.Now())
	if len(actions) != 1 {
		t.Fatalf("synthetic: expected 1 action, got %d", len(actions))
	}
	if actions[0].Kind != ActionSetChannel {
		t.Errorf("synthetic: wrong action retained: %v", actions[0])
	}
}

func TestEvaluateIncludeResetAtSetLevel(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key:          key(ch, model.StateOn),
		IncludeReset: true,
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "a"},
			{Kind: ActionRunCommand, Command: "b"},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, actions := NewEvaluator(table).Evaluate(event(ch, model.StateOn, false), nil, time.Now())
	if len(actions) != 2 {
		t.Errorf("set-level include_reset retains all actions, got %d", len(actions))
	}
}

func TestEvaluateResetFilterBeforeGuards(t *testing.T) {
	// A passing set-level guard must not resurrect non-reset actions on a
	// synthetic event.
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key:  key(ch, model.StateOn),
		When: mustParse(t, "1 == 1"),
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "mail"},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rule, actions := NewEvaluator(table).Evaluate(event(ch, model.StateOn, false), nil, time.Now())
	if rule == nil {
		t.Fatal("rule should match")
	}
	if len(actions) != 0 {
		t.Errorf("synthetic event dispatched %d non-reset actions", len(actions))
	}
}

func TestEvaluateDebounce(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key:  key(ch, model.StateOn),
		When: mustParse(t, "since_last_run > 2"),
		Actions: []Action{
			{Kind: ActionRunCommand, Command: "toggle"},
		},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ev := NewEvaluator(table)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Never ran: the sentinel satisfies the debounce guard.
	rule, actions := ev.Evaluate(event(ch, model.StateOn, true), nil, base)
	if len(actions) != 1 {
		t.Fatalf("first transition: expected 1 action, got %d", len(actions))
	}
	rule.MarkDispatched(base)

	// 1 second later: debounced.
	_, actions = ev.Evaluate(event(ch, model.StateOn, true), nil, base.Add(time.Second))
	if len(actions) != 0 {
		t.Errorf("debounced transition dispatched %d actions", len(actions))
	}

	// 3 seconds later: allowed again.
	_, actions = ev.Evaluate(event(ch, model.StateOn, true), nil, base.Add(3*time.Second))
	if len(actions) != 1 {
		t.Errorf("post-debounce transition: expected 1 action, got %d", len(actions))
	}
}

func TestTableRejectsDuplicates(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	if err := table.Add(&Rule{Key: key(ch, model.StateOn)}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := table.Add(&Rule{Key: key(ch, model.StateOn)}); err == nil {
		t.Error("duplicate rule key accepted")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	ch := testChannel()
	table := NewTable()
	r := &Rule{
		Key:     key(ch, model.StateOn),
		When:    mustParse(t, "since_last_run > 2"),
		Actions: []Action{{Kind: ActionRunCommand, Command: "x"}},
	}
	if err := table.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ev := NewEvaluator(table)
	now := time.Now()

	// Without MarkDispatched, repeated evaluation gives the same answer.
	for i := 0; i < 3; i++ {
		_, actions := ev.Evaluate(event(ch, model.StateOn, true), nil, now)
		if len(actions) != 1 {
			t.Fatalf("evaluation %d: expected 1 action, got %d", i, len(actions))
		}
	}
}

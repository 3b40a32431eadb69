package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sweeney/owmaster/internal/gpio"
	"github.com/sweeney/owmaster/internal/model"
	"github.com/sweeney/owmaster/internal/rules"
)

// Result is the validated runtime form of a configuration file. Lines
// are the input pins covered by scan cycles; Outputs are the pins driven
// by set_channel actions.
type Result struct {
	Inventory *model.Inventory
	Table     *rules.Table
	Lines     []gpio.Line
	Outputs   []gpio.Line
}

// Build validates the file and constructs the device inventory, the rule
// table and the GPIO line bindings. Every inconsistency is an error; the
// caller is expected to treat any of them as fatal.
func (f *File) Build() (*Result, error) {
	templates, err := f.buildTemplates()
	if err != nil {
		return nil, err
	}

	devices, lines, outputs, err := f.buildDevices(templates)
	if err != nil {
		return nil, err
	}
	inv, err := model.NewInventory(devices)
	if err != nil {
		return nil, err
	}

	table, err := f.buildRules(inv)
	if err != nil {
		return nil, err
	}

	return &Result{Inventory: inv, Table: table, Lines: lines, Outputs: outputs}, nil
}

func (f *File) buildTemplates() (map[string]*model.Template, error) {
	templates := make(map[string]*model.Template, len(f.StateTemplates))
	for name, sections := range f.StateTemplates {
		bands := make([]model.Band, 0, len(sections))
		for bandName, s := range sections {
			b := model.Band{Name: model.State(bandName), Low: 0, High: model.ADCMax + 1, Guess: s.Guess}
			if s.Low != nil {
				b.Low = *s.Low
			}
			if s.High != nil {
				b.High = *s.High
			}
			bands = append(bands, b)
		}
		tmpl, err := model.NewTemplate(name, bands)
		if err != nil {
			return nil, fmt.Errorf("state template %q: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

func (f *File) buildDevices(templates map[string]*model.Template) ([]*model.Device, []gpio.Line, []gpio.Line, error) {
	var devices []*model.Device
	var lines, outputs []gpio.Line

	for _, ds := range f.Devices {
		if ds.ID == "" {
			return nil, nil, nil, fmt.Errorf("device without id")
		}
		dev := &model.Device{
			ID:    model.DeviceID(ds.ID),
			Alias: ds.Alias,
			Type:  ds.Type,
			Min:   ds.Min,
			Max:   ds.Max,
		}
		for _, name := range sortedKeys(ds.Channels) {
			cs := ds.Channels[name]
			kind, mode, polarity, err := parseMode(cs.Mode)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("device %s channel %s: %w", ds.ID, name, err)
			}
			ch := &model.Channel{
				Device:   dev,
				Name:     name,
				Kind:     kind,
				Mode:     mode,
				Polarity: polarity,
				Unit:     cs.Unit,
			}
			if kind == model.KindAnalogIn {
				if cs.States == "" {
					return nil, nil, nil, fmt.Errorf("device %s channel %s: adc channel needs a states template", ds.ID, name)
				}
				tmpl, ok := templates[cs.States]
				if !ok {
					return nil, nil, nil, fmt.Errorf("device %s channel %s: unknown states template %q", ds.ID, name, cs.States)
				}
				ch.Template = tmpl
			} else if cs.States != "" {
				return nil, nil, nil, fmt.Errorf("device %s channel %s: states only applies to adc channels", ds.ID, name)
			}
			dev.Channels = append(dev.Channels, ch)

			if cs.Pin != nil {
				line := gpio.Line{Device: dev.ID, Channel: name, Pin: *cs.Pin}
				if kind == model.KindDigitalOut {
					outputs = append(outputs, line)
				} else {
					line.Alarm = kind == model.KindDigitalIn
					lines = append(lines, line)
				}
			}
		}
		devices = append(devices, dev)
	}
	return devices, lines, outputs, nil
}

func (f *File) buildRules(inv *model.Inventory) (*rules.Table, error) {
	table := rules.NewTable()
	for _, ds := range f.Devices {
		for _, name := range sortedKeys(ds.Channels) {
			cs := ds.Channels[name]
			ch := inv.Channel(model.DeviceID(ds.ID), name)
			for _, stateName := range sortedKeys(cs.Events) {
				rs := cs.Events[stateName]
				rule, err := buildRule(inv, ch, stateName, rs)
				if err != nil {
					return nil, fmt.Errorf("device %s channel %s event %q: %w", ds.ID, name, stateName, err)
				}
				if err := table.Add(rule); err != nil {
					return nil, err
				}
			}
		}
	}
	return table, nil
}

func buildRule(inv *model.Inventory, ch *model.Channel, stateName string, rs RuleSection) (*rules.Rule, error) {
	if err := validateEventState(ch, stateName); err != nil {
		return nil, err
	}
	rule := &rules.Rule{
		Key: rules.Key{
			Device:  ch.Device.ID,
			Channel: ch.Name,
			State:   model.State(stateName),
		},
		IncludeReset: rs.IncludeReset,
	}
	if rs.When != "" {
		expr, err := rules.Parse(rs.When)
		if err != nil {
			return nil, fmt.Errorf("when: %w", err)
		}
		rule.When = expr
	}
	if len(rs.Actions) == 0 {
		return nil, fmt.Errorf("no actions")
	}
	for i, as := range rs.Actions {
		a, err := buildAction(inv, as)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		rule.Actions = append(rule.Actions, a)
	}
	return rule, nil
}

func buildAction(inv *model.Inventory, as ActionSection) (rules.Action, error) {
	a := rules.Action{IncludeReset: as.IncludeReset}
	if as.When != "" {
		expr, err := rules.Parse(as.When)
		if err != nil {
			return a, fmt.Errorf("when: %w", err)
		}
		a.When = expr
	}

	switch as.Action {
	case "set_channel":
		a.Kind = rules.ActionSetChannel
		if as.Target == "" {
			return a, fmt.Errorf("set_channel needs a target")
		}
		target, err := inv.ResolveTarget(as.Target)
		if err != nil {
			return a, err
		}
		if target.Kind != model.KindDigitalOut {
			return a, fmt.Errorf("target %s is not an output channel", target.Address())
		}
		if as.Value == nil {
			return a, fmt.Errorf("set_channel needs a value")
		}
		a.Target = target
		a.Value = *as.Value
	case "run_command":
		a.Kind = rules.ActionRunCommand
		if as.Command == "" {
			return a, fmt.Errorf("run_command needs a command")
		}
		a.Command = as.Command
	case "":
		return a, fmt.Errorf("missing action")
	default:
		return a, fmt.Errorf("unknown action %q", as.Action)
	}
	return a, nil
}

// validateEventState rejects event keys the channel can never enter.
func validateEventState(ch *model.Channel, stateName string) error {
	switch ch.Kind {
	case model.KindAnalogIn:
		if _, ok := ch.Template.Band(model.State(stateName)); !ok {
			return fmt.Errorf("state %q is not a band of template %q", stateName, ch.Template.Name)
		}
	case model.KindDigitalIn:
		if ch.Mode == model.ModeMomentary {
			if stateName != string(model.StateTrigged) {
				return fmt.Errorf("momentary inputs only produce %q", model.StateTrigged)
			}
			return nil
		}
		fallthrough
	case model.KindDigitalOut:
		if stateName != string(model.StateOn) && stateName != string(model.StateOff) {
			return fmt.Errorf("state %q is not producible (want on or off)", stateName)
		}
	}
	return nil
}

// parseMode understands "input momentary", "input toggle", "output" and
// "adc", each optionally followed by "active low" or "active high".
func parseMode(s string) (model.Kind, model.InputMode, model.Polarity, error) {
	fields := strings.Fields(strings.ToLower(s))
	kind := model.KindDigitalIn
	mode := model.ModeToggle
	polarity := model.ActiveLow

	// Strip the polarity suffix first.
	if n := len(fields); n >= 2 && fields[n-2] == "active" {
		switch fields[n-1] {
		case "low":
			polarity = model.ActiveLow
		case "high":
			polarity = model.ActiveHigh
		default:
			return kind, mode, polarity, fmt.Errorf("invalid polarity %q", fields[n-1])
		}
		fields = fields[:n-2]
	}

	switch strings.Join(fields, " ") {
	case "input momentary":
		mode = model.ModeMomentary
	case "input toggle", "input":
		mode = model.ModeToggle
	case "output":
		kind = model.KindDigitalOut
	case "adc":
		kind = model.KindAnalogIn
	case "":
		return kind, mode, polarity, fmt.Errorf("missing mode")
	default:
		return kind, mode, polarity, fmt.Errorf("unknown mode %q", s)
	}
	return kind, mode, polarity, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

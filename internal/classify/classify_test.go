package classify

import (
	"testing"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

func probeTemplate(t *testing.T) *model.Template {
	t.Helper()
	tmpl, err := model.NewTemplate("probe", []model.Band{
		{Name: "short", Low: model.ADCMin, High: 3000},
		{Name: "closed", Low: 3000, High: 38000},
		{Name: "open", Low: 38000, High: 45000},
		{Name: "cut", Low: 45000, High: model.ADCMax + 1},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	return tmpl
}

func analogChannel(tmpl *model.Template) *model.Channel {
	dev := &model.Device{ID: "F0.112233445566", Alias: "probe"}
	ch := &model.Channel{
		Device:   dev,
		Name:     "adc.1",
		Kind:     model.KindAnalogIn,
		Template: tmpl,
	}
	dev.Channels = []*model.Channel{ch}
	return ch
}

func digitalChannel(mode model.InputMode, pol model.Polarity) *model.Channel {
	dev := &model.Device{ID: "12.A2D36C000000", Alias: "switch"}
	ch := &model.Channel{
		Device:   dev,
		Name:     "A",
		Kind:     model.KindDigitalIn,
		Mode:     mode,
		Polarity: pol,
	}
	dev.Channels = []*model.Channel{ch}
	return ch
}

func TestClassifyAnalogInsideBand(t *testing.T) {
	c := New(0)
	ch := analogChannel(probeTemplate(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  float64
		want model.State
	}{
		{0, "short"},
		{2999, "short"},
		{3000, "closed"},
		{20000, "closed"},
		{38000, "open"},
		{44999, "open"},
		{45000, "cut"},
		{65535, "cut"},
	}
	for _, tt := range tests {
		// Result must not depend on previous state for unambiguous readings.
		for _, prev := range []model.State{model.StateUnknown, "short", "cut"} {
			ch.State = prev
			got := c.Classify(ch, tt.raw, now)
			if got != tt.want {
				t.Errorf("Classify(%v) with prev=%q: got %q, want %q", tt.raw, prev, got, tt.want)
			}
		}
	}
}

func TestClassifyAnalogOutsideAllBands(t *testing.T) {
	tmpl, err := model.NewTemplate("gap", []model.Band{
		{Name: "low", Low: 0, High: 1000},
		{Name: "high", Low: 5000, High: 9000},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	c := New(0)
	ch := analogChannel(tmpl)
	ch.State = "low"
	now := time.Now()

	if got := c.Classify(ch, 3000, now); got != "low" {
		t.Errorf("reading in gap: got %q, want previous state %q", got, "low")
	}

	// Even from unknown, an out-of-band reading must not invent a state.
	ch.State = model.StateUnknown
	if got := c.Classify(ch, 3000, now); got != model.StateUnknown {
		t.Errorf("reading in gap from unknown: got %q, want unknown", got)
	}
}

func TestClassifyAnalogHysteresis(t *testing.T) {
	// Deliberate overlap: 3500..4000 is in both bands; "wet" may be guessed.
	tmpl, err := model.NewTemplate("overlap", []model.Band{
		{Name: "dry", Low: 0, High: 4000},
		{Name: "wet", Low: 3500, High: 9000, Guess: true},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	c := New(0)
	ch := analogChannel(tmpl)
	now := time.Now()

	ch.State = "dry"
	if got := c.Classify(ch, 3800, now); got != "dry" {
		t.Errorf("overlap with prev=dry: got %q, want dry", got)
	}

	ch.State = "wet"
	if got := c.Classify(ch, 3800, now); got != "wet" {
		t.Errorf("overlap with prev=wet: got %q, want wet", got)
	}

	// From an unrelated state the non-guess band wins.
	ch.State = model.StateUnknown
	if got := c.Classify(ch, 3800, now); got != "dry" {
		t.Errorf("overlap with prev=unknown: got %q, want dry", got)
	}
}

func TestClassifyAnalogNarrowerBandWins(t *testing.T) {
	tmpl, err := model.NewTemplate("nested", []model.Band{
		{Name: "coarse", Low: 0, High: 10000, Guess: true},
		{Name: "fine", Low: 4000, High: 5000, Guess: true},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	c := New(0)
	ch := analogChannel(tmpl)

	if got := c.Classify(ch, 4500, time.Now()); got != "fine" {
		t.Errorf("nested overlap: got %q, want fine", got)
	}
}

func TestClassifyAnalogFlickerSuppression(t *testing.T) {
	c := New(time.Second)
	ch := analogChannel(probeTemplate(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	step := func(raw float64, at time.Duration) model.State {
		got := c.Classify(ch, raw, base.Add(at))
		ch.State = got
		return got
	}

	if got := step(20000, 0); got != "closed" {
		t.Fatalf("first reading: got %q, want closed", got)
	}
	if got := step(40000, 100*time.Millisecond); got != "open" {
		t.Fatalf("second reading: got %q, want open", got)
	}
	// Third change within the window is flicker: hold the previous state.
	if got := step(20000, 200*time.Millisecond); got != "open" {
		t.Errorf("flickering reading: got %q, want suppressed open", got)
	}
	// Once the window has drained the transition is accepted.
	if got := step(20000, 2*time.Second); got != "closed" {
		t.Errorf("settled reading: got %q, want closed", got)
	}
}

func TestClassifyDigitalToggle(t *testing.T) {
	c := New(0)
	now := time.Now()

	tests := []struct {
		pol  model.Polarity
		raw  float64
		want model.State
	}{
		{model.ActiveLow, 0, model.StateOn},
		{model.ActiveLow, 1, model.StateOff},
		{model.ActiveHigh, 1, model.StateOn},
		{model.ActiveHigh, 0, model.StateOff},
	}
	for _, tt := range tests {
		ch := digitalChannel(model.ModeToggle, tt.pol)
		if got := c.Classify(ch, tt.raw, now); got != tt.want {
			t.Errorf("toggle pol=%v raw=%v: got %q, want %q", tt.pol, tt.raw, got, tt.want)
		}
	}
}

func TestClassifyDigitalMomentary(t *testing.T) {
	c := New(0)
	ch := digitalChannel(model.ModeMomentary, model.ActiveLow)
	now := time.Now()

	if got := c.Classify(ch, 0, now); got != model.StateTrigged {
		t.Errorf("active momentary: got %q, want trigged", got)
	}
	if got := c.Classify(ch, 1, now); got != model.StateOff {
		t.Errorf("inactive momentary: got %q, want off", got)
	}
}

func TestClassifyDigitalOutput(t *testing.T) {
	c := New(0)
	dev := &model.Device{ID: "3A.010101010101"}
	ch := &model.Channel{Device: dev, Name: "A", Kind: model.KindDigitalOut, Polarity: model.ActiveLow}
	dev.Channels = []*model.Channel{ch}

	if got := c.Classify(ch, 0, time.Now()); got != model.StateOn {
		t.Errorf("output sensed active: got %q, want on", got)
	}
	if got := c.Classify(ch, 1, time.Now()); got != model.StateOff {
		t.Errorf("output sensed inactive: got %q, want off", got)
	}
}

package gpio

import (
	"testing"

	"github.com/sweeney/owmaster/internal/model"
)

func outputChannel(polarity model.Polarity) *model.Channel {
	dev := &model.Device{ID: "3A.010101010101", Alias: "relays"}
	ch := &model.Channel{Device: dev, Name: "A", Kind: model.KindDigitalOut, Polarity: polarity}
	dev.Channels = []*model.Channel{ch}
	return ch
}

func TestOutputBusWritePolarity(t *testing.T) {
	tests := []struct {
		name     string
		polarity model.Polarity
		value    bool
		want     int
	}{
		{"active low on", model.ActiveLow, true, 0},
		{"active low off", model.ActiveLow, false, 1},
		{"active high on", model.ActiveHigh, true, 1},
		{"active high off", model.ActiveHigh, false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setter := &FakeSetter{}
			bus, err := NewOutputBus([]Output{{Channel: outputChannel(tc.polarity), Setter: setter}})
			if err != nil {
				t.Fatalf("NewOutputBus: %v", err)
			}
			if err := bus.Write("3A.010101010101", "A", tc.value); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if len(setter.Levels) != 1 || setter.Levels[0] != tc.want {
				t.Errorf("levels = %v, want [%d]", setter.Levels, tc.want)
			}
		})
	}
}

func TestOutputBusUnknownChannel(t *testing.T) {
	bus, err := NewOutputBus(nil)
	if err != nil {
		t.Fatalf("NewOutputBus: %v", err)
	}
	if err := bus.Write("3A.010101010101", "A", true); err == nil {
		t.Error("write to unmapped channel accepted")
	}
}

func TestOutputBusRejectsDuplicates(t *testing.T) {
	ch := outputChannel(model.ActiveLow)
	_, err := NewOutputBus([]Output{
		{Channel: ch, Setter: &FakeSetter{}},
		{Channel: ch, Setter: &FakeSetter{}},
	})
	if err == nil {
		t.Error("duplicate output mapping accepted")
	}
}

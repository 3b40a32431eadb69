package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func testLines() []Line {
	return []Line{
		{Device: "12.A2D36C000000", Channel: "6", Pin: 26, Alarm: true},
		{Device: "12.A2D36C000000", Channel: "4", Pin: 16},
	}
}

func TestScanFullReadsAllLines(t *testing.T) {
	readers := []LineReader{NewFakeLine(1), NewFakeLine(0)}
	src, err := NewSource(testLines(), readers, fixedNow)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	batch, err := src.Scan(model.ScanFull)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(batch.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(batch.Samples))
	}
	if batch.Samples[0].Value != 1 || batch.Samples[1].Value != 0 {
		t.Errorf("wrong values: %v", batch.Samples)
	}
	if batch.Samples[0].Channel != "6" || batch.Samples[1].Channel != "4" {
		t.Errorf("wrong channels: %v", batch.Samples)
	}
	if !batch.Samples[0].Timestamp.Equal(fixedNow()) {
		t.Errorf("wrong timestamp: %v", batch.Samples[0].Timestamp)
	}
}

func TestScanAlarmSkipsNonAlarmLines(t *testing.T) {
	readers := []LineReader{NewFakeLine(1), NewFakeLine(0)}
	src, err := NewSource(testLines(), readers, fixedNow)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	batch, err := src.Scan(model.ScanAlarm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(batch.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(batch.Samples))
	}
	if batch.Samples[0].Channel != "6" {
		t.Errorf("wrong channel: %v", batch.Samples[0])
	}
}

func TestScanReadsBackDrivenOutputs(t *testing.T) {
	ch := outputChannel(model.ActiveHigh)
	setter := &FakeSetter{}
	bus, err := NewOutputBus([]Output{{Channel: ch, Setter: setter}})
	if err != nil {
		t.Fatalf("NewOutputBus: %v", err)
	}

	lines := append(testLines(), Line{Device: ch.Device.ID, Channel: ch.Name, Pin: 17})
	readers := []LineReader{NewFakeLine(1), NewFakeLine(0), setter}
	src, err := NewSource(lines, readers, fixedNow)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	batch, err := src.Scan(model.ScanFull)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(batch.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(batch.Samples))
	}
	if batch.Samples[2].Channel != "A" || batch.Samples[2].Value != 0 {
		t.Errorf("undriven output sample = %v, want channel A at 0", batch.Samples[2])
	}

	if err := bus.Write(string(ch.Device.ID), ch.Name, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	batch, err = src.Scan(model.ScanFull)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if batch.Samples[2].Value != 1 {
		t.Errorf("driven output sample = %v, want channel A at 1", batch.Samples[2])
	}

	alarm, err := src.Scan(model.ScanAlarm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, s := range alarm.Samples {
		if s.Channel == "A" {
			t.Errorf("alarm scan included output line: %v", s)
		}
	}
}

func TestScanReadFailureAbortsBatch(t *testing.T) {
	bad := NewFakeLine(1)
	bad.ValueError = errors.New("line gone")
	src, err := NewSource(testLines(), []LineReader{NewFakeLine(1), bad}, fixedNow)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	if _, err := src.Scan(model.ScanFull); err == nil {
		t.Error("expected error from failing line")
	}
}

func TestNewSourceLengthMismatch(t *testing.T) {
	if _, err := NewSource(testLines(), []LineReader{NewFakeLine(1)}, nil); err == nil {
		t.Error("mismatched lines and readers accepted")
	}
}

func TestFakeLineRepeatsLastLevel(t *testing.T) {
	f := NewFakeLine(0, 1)
	for _, want := range []int{0, 1, 1, 1} {
		got, err := f.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		if got != want {
			t.Errorf("Value = %d, want %d", got, want)
		}
	}
}

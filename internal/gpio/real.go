//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines requests GPIO lines from actual hardware using the Linux GPIO
// character device.
type RealLines struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealLines opens the chip and requests one input line per pin.
// Lines are requested with pull-down to match Pi boot defaults, which
// keeps behavior consistent with external optocoupler modules.
func NewRealLines(chipName string, pins []int) (*RealLines, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealLines{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Readers returns one LineReader per requested pin, in request order.
func (r *RealLines) Readers() []LineReader {
	readers := make([]LineReader, len(r.lines))
	for i, line := range r.lines {
		readers[i] = line
	}
	return readers
}

// RealOutputs requests GPIO lines as outputs.
type RealOutputs struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealOutputs opens the chip and requests one output line per pin,
// driven low initially.
func NewRealOutputs(chipName string, pins []int) (*RealOutputs, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealOutputs{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Setters returns one LineSetter per requested pin, in request order.
func (r *RealOutputs) Setters() []LineSetter {
	setters := make([]LineSetter, len(r.lines))
	for i, line := range r.lines {
		setters[i] = line
	}
	return setters
}

// Readers returns one LineReader per requested pin, in request order.
// Output lines report the level they are driving, so scans observe
// written states on the next cycle.
func (r *RealOutputs) Readers() []LineReader {
	readers := make([]LineReader, len(r.lines))
	for i, line := range r.lines {
		readers[i] = line
	}
	return readers
}

// Close releases the output lines without reconfiguring them, leaving
// the last driven levels in place.
func (r *RealOutputs) Close() error {
	var errs []error
	for i, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output line %d: %w", i, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Close releases GPIO resources. Pins are reconfigured to input with
// pull-down before closing so external hardware sees boot-default levels.
func (r *RealLines) Close() error {
	var errs []error
	for i, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", i, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

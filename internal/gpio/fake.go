package gpio

import "errors"

// FakeLine is a test double that returns scripted raw levels.
type FakeLine struct {
	// Levels contains scripted raw values. Each call to Value consumes
	// the next one; when exhausted, the last value repeats.
	Levels []int

	// ValueError, if set, will be returned by Value.
	ValueError error

	index int
}

// NewFakeLine creates a FakeLine with the given levels.
func NewFakeLine(levels ...int) *FakeLine {
	return &FakeLine{Levels: levels}
}

// Value returns the next scripted level.
func (f *FakeLine) Value() (int, error) {
	if f.ValueError != nil {
		return 0, f.ValueError
	}
	if len(f.Levels) == 0 {
		return 0, errors.New("no levels configured")
	}
	v := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return v, nil
}

// Reset rewinds the line to the beginning of its script.
func (f *FakeLine) Reset() {
	f.index = 0
}

// FakeSetter records output levels for tests.
type FakeSetter struct {
	Levels []int

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// SetValue records the level.
func (f *FakeSetter) SetValue(value int) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, value)
	return nil
}

// Value returns the last driven level, or 0 before any write. Output
// lines start driven low, and reading one back reports the driven level.
func (f *FakeSetter) Value() (int, error) {
	if len(f.Levels) == 0 {
		return 0, nil
	}
	return f.Levels[len(f.Levels)-1], nil
}

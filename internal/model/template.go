package model

import (
	"fmt"
	"math"
	"sort"
)

// ADC value range of the supported bus devices.
const (
	ADCMin = 0
	ADCMax = 65535
)

// Band maps a half-open numeric range [Low, High) to a named logical state.
// Unset bounds are open-ended. Guess marks a band that may be entered on
// ambiguous evidence; transitions into non-guess bands are subject to the
// classifier's flicker suppression.
type Band struct {
	Name  State
	Low   float64
	High  float64
	Guess bool
}

// Contains reports whether v falls inside the band's range.
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v < b.High
}

// Width is used as the final classification tie-break (narrower wins).
func (b Band) Width() float64 {
	return b.High - b.Low
}

// Template is a named, reusable set of classification bands, shared by
// reference across analog channels.
type Template struct {
	Name  string
	Bands []Band
}

// NewTemplate validates and builds a template. Bands are sorted by lower
// bound. Two bands may overlap only if at least one of them is marked
// guess; overlapping non-guess bands are a configuration error because the
// tie-break rule could not resolve them deterministically.
func NewTemplate(name string, bands []Band) (*Template, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("template %s: no bands defined", name)
	}

	seen := make(map[State]bool, len(bands))
	for i := range bands {
		b := &bands[i]
		if b.Name == StateUnknown {
			return nil, fmt.Errorf("template %s: band with empty name", name)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("template %s: duplicate band %q", name, b.Name)
		}
		seen[b.Name] = true

		if math.IsNaN(b.Low) || math.IsNaN(b.High) {
			return nil, fmt.Errorf("template %s: band %q has NaN bound", name, b.Name)
		}
		if b.Low >= b.High {
			return nil, fmt.Errorf("template %s: band %q has empty range [%v, %v)", name, b.Name, b.Low, b.High)
		}
	}

	sort.Slice(bands, func(i, j int) bool { return bands[i].Low < bands[j].Low })

	for i := 0; i < len(bands); i++ {
		for j := i + 1; j < len(bands); j++ {
			a, b := bands[i], bands[j]
			if a.Guess || b.Guess {
				continue
			}
			if a.High > b.Low {
				return nil, fmt.Errorf("template %s: bands %q and %q overlap and neither is marked guess",
					name, a.Name, b.Name)
			}
		}
	}

	return &Template{Name: name, Bands: bands}, nil
}

// Match returns every band whose range contains v, in lower-bound order.
func (t *Template) Match(v float64) []Band {
	var out []Band
	for _, b := range t.Bands {
		if b.Contains(v) {
			out = append(out, b)
		}
	}
	return out
}

// Band returns the named band, if present.
func (t *Template) Band(name State) (Band, bool) {
	for _, b := range t.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

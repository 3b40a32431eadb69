// Package model contains the core entities of the supervision pipeline:
// devices, channels, state templates, samples and transition events.
// This package has NO external dependencies (no bus I/O, MQTT, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package model

import "time"

// DeviceID is the stable bus address of a device, e.g. "12.A2D36C000000".
type DeviceID string

// State is the classified logical state of a channel. Digital channels use
// the on/off/trigged constants; analog channels use band names from their
// state template (e.g. "open", "cut").
type State string

const (
	// StateUnknown is the state of a channel before its first classified
	// reading. It never appears as the target of a transition.
	StateUnknown State = ""

	StateOn      State = "on"
	StateOff     State = "off"
	StateTrigged State = "trigged"
)

// Kind describes what a channel physically is.
type Kind int

const (
	KindDigitalIn Kind = iota
	KindDigitalOut
	KindAnalogIn
)

func (k Kind) String() string {
	switch k {
	case KindDigitalIn:
		return "digital input"
	case KindDigitalOut:
		return "digital output"
	case KindAnalogIn:
		return "analog input"
	}
	return "unknown"
}

// InputMode selects how a digital input reports.
type InputMode int

const (
	// ModeMomentary inputs report an edge ("trigged") when they go active;
	// the release edge is silent.
	ModeMomentary InputMode = iota
	// ModeToggle inputs latch and report on/off levels.
	ModeToggle
)

// Polarity maps the raw electrical level to the active logical state.
// Active low is the default: on a parasite-powered net, "on" means the
// line is pulled to ground.
type Polarity int

const (
	ActiveLow Polarity = iota
	ActiveHigh
)

// Device owns an ordered collection of channels. Min/Max are optional
// sanity bounds applied at sample intake, not by the classifier.
type Device struct {
	ID    DeviceID
	Alias string
	Type  string
	Min   *float64
	Max   *float64

	Channels []*Channel
}

// Channel belongs to exactly one device. Everything except State, LastRaw
// and LastSeen is immutable after configuration load. The mutable fields
// are owned by the transition tracker and guarded by the engine cycle lock.
type Channel struct {
	Device   *Device
	Name     string
	Kind     Kind
	Mode     InputMode
	Polarity Polarity
	Unit     string
	Template *Template // analog channels only

	State    State
	LastRaw  float64
	LastSeen time.Time
}

// Key returns the identity of the channel within the inventory.
func (c *Channel) Key() ChannelKey {
	return ChannelKey{Device: c.Device.ID, Channel: c.Name}
}

// Address is the human-readable "<device>.<channel>" form used in logs.
func (c *Channel) Address() string {
	return string(c.Device.ID) + "." + c.Name
}

// ActiveLevel is the raw digital level (0 or 1) that means "active".
func (c *Channel) ActiveLevel() int {
	if c.Polarity == ActiveHigh {
		return 1
	}
	return 0
}

// IsInput reports whether the channel produces readings.
func (c *Channel) IsInput() bool {
	return c.Kind == KindDigitalIn || c.Kind == KindAnalogIn
}

// ChannelKey identifies a channel across the inventory.
type ChannelKey struct {
	Device  DeviceID
	Channel string
}

// Sample is one raw timestamped reading from the sample source. Value is
// the raw digital level (0/1) for digital channels and the raw ADC value
// for analog channels.
type Sample struct {
	Device    DeviceID
	Channel   string
	Value     float64
	Timestamp time.Time
}

// ScanMode selects which channels a scan cycle covers.
type ScanMode int

const (
	// ScanFull reads every channel on the slow cadence.
	ScanFull ScanMode = iota
	// ScanAlarm reads only alarm-capable inputs on the fast cadence.
	ScanAlarm
)

func (m ScanMode) String() string {
	if m == ScanAlarm {
		return "alarm"
	}
	return "full"
}

// Batch is the outcome of one scan cycle. Reset signals that the source
// lost device state and the supervisor should replay known states.
type Batch struct {
	Samples []Sample
	Reset   bool
}

// TransitionEvent is emitted by the tracker when a channel's logical state
// changes (organic) or is replayed after startup/reset (synthetic,
// Organic=false).
type TransitionEvent struct {
	ID        string
	Channel   *Channel
	From      State
	To        State
	Timestamp time.Time
	Organic   bool
}

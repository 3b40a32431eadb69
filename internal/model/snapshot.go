package model

// ChannelView is the read-only per-channel entry of a snapshot.
// Value is 1/0 for digital channels (on/active = 1) and the last raw
// reading for analog channels.
type ChannelView struct {
	State State
	Value float64
}

// Snapshot is a point-in-time, read-only view of every channel's current
// logical state, addressable by device alias or bus ID. Guard expressions
// evaluate against it; channels that have not produced a classified state
// yet are absent.
type Snapshot struct {
	channels map[ChannelKey]ChannelView
	resolve  map[string]DeviceID
}

// SnapshotOf captures the current state of the inventory. Must be called
// under the engine cycle lock.
func SnapshotOf(inv *Inventory) Snapshot {
	s := Snapshot{
		channels: make(map[ChannelKey]ChannelView),
		resolve:  make(map[string]DeviceID),
	}
	for _, dev := range inv.Devices() {
		s.resolve[string(dev.ID)] = dev.ID
		if dev.Alias != "" {
			s.resolve[dev.Alias] = dev.ID
		}
		for _, ch := range dev.Channels {
			if ch.State == StateUnknown {
				continue
			}
			s.channels[ch.Key()] = ChannelView{
				State: ch.State,
				Value: channelValue(ch),
			}
		}
	}
	return s
}

// Lookup resolves "<alias-or-id>[<channel>]". The second return is false
// when the device or channel is unknown or not yet observed; guards treat
// that as undefined, never as an error.
func (s Snapshot) Lookup(device, channel string) (ChannelView, bool) {
	id, ok := s.resolve[device]
	if !ok {
		return ChannelView{}, false
	}
	view, ok := s.channels[ChannelKey{Device: id, Channel: channel}]
	return view, ok
}

func channelValue(ch *Channel) float64 {
	switch ch.Kind {
	case KindAnalogIn:
		return ch.LastRaw
	default:
		if ch.State == StateOn || ch.State == StateTrigged {
			return 1
		}
		return 0
	}
}

package model

import "fmt"

// Inventory is the immutable device table built from configuration.
// Devices are addressable by bus ID or by alias.
type Inventory struct {
	devices []*Device
	byID    map[DeviceID]*Device
	byAlias map[string]*Device
}

// NewInventory builds an inventory, rejecting duplicate IDs and aliases.
func NewInventory(devices []*Device) (*Inventory, error) {
	inv := &Inventory{
		devices: devices,
		byID:    make(map[DeviceID]*Device, len(devices)),
		byAlias: make(map[string]*Device),
	}
	for _, dev := range devices {
		if dev.ID == "" {
			return nil, fmt.Errorf("device with empty id")
		}
		if _, dup := inv.byID[dev.ID]; dup {
			return nil, fmt.Errorf("duplicate device id %s", dev.ID)
		}
		inv.byID[dev.ID] = dev

		if dev.Alias != "" {
			if _, dup := inv.byAlias[dev.Alias]; dup {
				return nil, fmt.Errorf("duplicate device alias %q", dev.Alias)
			}
			if _, clash := inv.byID[DeviceID(dev.Alias)]; clash {
				return nil, fmt.Errorf("device alias %q collides with a device id", dev.Alias)
			}
			inv.byAlias[dev.Alias] = dev
		}
	}
	return inv, nil
}

// Find resolves a device by bus ID or alias. Returns nil if unknown.
func (inv *Inventory) Find(idOrAlias string) *Device {
	if dev, ok := inv.byID[DeviceID(idOrAlias)]; ok {
		return dev
	}
	return inv.byAlias[idOrAlias]
}

// Channel resolves a channel by device ID and channel name.
func (inv *Inventory) Channel(id DeviceID, name string) *Channel {
	dev := inv.byID[id]
	if dev == nil {
		return nil
	}
	for _, ch := range dev.Channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

// ResolveTarget parses a "<device-id|alias>.<channel>" target string.
// Device IDs themselves contain a dot ("12.A2D36C000000.A"), so the
// channel is the part after the last dot that leaves a resolvable device.
func (inv *Inventory) ResolveTarget(target string) (*Channel, error) {
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] != '.' {
			continue
		}
		dev := inv.Find(target[:i])
		if dev == nil {
			continue
		}
		chName := target[i+1:]
		if chName == "" {
			return nil, fmt.Errorf("target %q has no channel", target)
		}
		for _, ch := range dev.Channels {
			if ch.Name == chName {
				return ch, nil
			}
		}
		return nil, fmt.Errorf("device %s has no channel %q", dev.ID, chName)
	}
	return nil, fmt.Errorf("cannot resolve target %q", target)
}

// Devices returns the devices in configuration order.
func (inv *Inventory) Devices() []*Device {
	return inv.devices
}

// Channels returns every channel in configuration order.
func (inv *Inventory) Channels() []*Channel {
	var out []*Channel
	for _, dev := range inv.devices {
		out = append(out, dev.Channels...)
	}
	return out
}

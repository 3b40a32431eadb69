// Package gpio samples channel values from GPIO lines with hardware
// abstraction. The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/owmaster/internal/model"

// Line binds one GPIO pin (BCM numbering) to an inventory channel.
type Line struct {
	Device  model.DeviceID
	Channel string
	Pin     int

	// Alarm marks the line for inclusion in fast alarm scans.
	Alarm bool
}

// LineReader reads the raw level of one requested line.
type LineReader interface {
	// Value returns the raw level (0 or 1).
	Value() (int, error)
}

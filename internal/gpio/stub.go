//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, pins []int) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Readers is not implemented on non-Linux platforms.
func (r *RealLines) Readers() []LineReader {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(chipName string, pins []int) (*RealOutputs, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Setters is not implemented on non-Linux platforms.
func (r *RealOutputs) Setters() []LineSetter {
	return nil
}

// Readers is not implemented on non-Linux platforms.
func (r *RealOutputs) Readers() []LineReader {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (r *RealOutputs) Close() error {
	return nil
}

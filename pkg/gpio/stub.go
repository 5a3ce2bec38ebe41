//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealAlert is not available on non-Linux platforms.
type RealAlert struct{}

// NewRealAlert returns an error on non-Linux platforms.
func NewRealAlert(chipName string, line int) (*RealAlert, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Events returns nil on non-Linux platforms.
func (a *RealAlert) Events() <-chan time.Time {
	return nil
}

// Asserted is not implemented on non-Linux platforms.
func (a *RealAlert) Asserted() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (a *RealAlert) Close() error {
	return nil
}

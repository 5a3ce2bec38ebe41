// Package ui handles the setpoint buttons and the tool stand.
package ui

import "github.com/itohio/gotip/pkg/hal"

// Button debounces a digital input. A level is accepted after it was read
// the same on threshold consecutive polls.
type Button struct {
	in        hal.Input
	threshold int
	last      bool
	count     int
	stable    bool
}

// NewButton wraps in with the given debounce threshold.
func NewButton(in hal.Input, threshold int) *Button {
	if threshold < 1 {
		threshold = 1
	}
	return &Button{in: in, threshold: threshold}
}

// Poll samples the input once. It reports true on the poll where a press
// is accepted.
func (b *Button) Poll() bool {
	raw := b.in.Get()
	if raw != b.last {
		b.last = raw
		b.count = 0
	}
	if b.count < b.threshold {
		b.count++
	}
	if b.count < b.threshold || raw == b.stable {
		return false
	}
	b.stable = raw
	return raw
}

// Pressed returns the debounced level.
func (b *Button) Pressed() bool {
	return b.stable
}

package gpio

import (
	"sync"
	"time"
)

var _ Alert = (*FakeAlert)(nil)

// FakeAlert is a test double driven by Trigger and Release.
type FakeAlert struct {
	mu       sync.Mutex
	events   chan time.Time
	asserted bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Asserted()
	ReadError error
}

// NewFakeAlert creates a released FakeAlert.
func NewFakeAlert() *FakeAlert {
	return &FakeAlert{events: make(chan time.Time, eventBuffer)}
}

// Trigger pulls the line low and emits a falling edge. Triggering an already
// asserted line emits nothing.
func (f *FakeAlert) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.asserted || f.Closed {
		return
	}
	f.asserted = true
	select {
	case f.events <- time.Now():
	default:
	}
}

// Release lets the line float high again.
func (f *FakeAlert) Release() {
	f.mu.Lock()
	f.asserted = false
	f.mu.Unlock()
}

// Events returns the falling edge channel.
func (f *FakeAlert) Events() <-chan time.Time {
	return f.events
}

// Asserted reports whether Trigger was called since the last Release.
func (f *FakeAlert) Asserted() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.asserted, nil
}

// Close marks the alert as closed and closes the events channel.
func (f *FakeAlert) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.Closed {
		f.Closed = true
		close(f.events)
	}
	return nil
}

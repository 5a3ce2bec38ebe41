package station

import (
	"sync"

	"github.com/itohio/gotip/pkg/mathx"
)

// Station owns the State record. Every access goes through its mutex:
// writers use Update, readers copy the record out with Snapshot.
type Station struct {
	mu    sync.Mutex
	state State
}

// New creates a station holding the given initial state.
func New(initial State) *Station {
	return &Station{state: initial}
}

// Update runs fn with exclusive access to the state.
// fn must not block.
func (s *Station) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Snapshot returns a copy of the state.
func (s *Station) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetTemperature sets the temperature target clamped to the configured bounds.
func (s *Station) SetTemperature(t float32) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t = mathx.Clamp(t, s.state.Temperatures.Min, s.state.Temperatures.Max)
	s.state.TemperatureControl.Set = t
	return t
}

// SetSleep suspends or resumes heating.
func (s *Station) SetSleep(sleep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sleep = sleep
}

package ui

import "time"

// StandState is the position of the tool with respect to its stand.
type StandState int

const (
	// Active: the tool is in hand.
	Active StandState = iota
	// InStand: the tool rests at the stand temperature.
	InStand
	// Sleeping: the tool stayed in the stand long enough to switch off.
	Sleeping
)

func (s StandState) String() string {
	switch s {
	case Active:
		return "active"
	case InStand:
		return "stand"
	case Sleeping:
		return "sleep"
	}
	return "unknown"
}

// Stand tracks the stand switch and decides when to sleep.
type Stand struct {
	State     StandState
	Since     time.Time
	AutoSleep time.Duration
	NoSleep   bool
}

// Update advances the state machine. It reports whether the state changed.
func (s *Stand) Update(inStand bool, now time.Time) bool {
	prev := s.State
	switch {
	case !inStand:
		s.State = Active
	case s.State == Active:
		s.State = InStand
		s.Since = now
		if !s.NoSleep && s.AutoSleep <= 0 {
			s.State = Sleeping
		}
	case s.State == InStand && !s.NoSleep && now.Sub(s.Since) >= s.AutoSleep:
		s.State = Sleeping
	}
	return s.State != prev
}

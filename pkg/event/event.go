// Package event provides broadcast event sources with pending flags.
//
// A broadcast sets flags on every registered listener that is interested in
// them. Flags stay pending until the listener waits on them, so a broadcast
// made before the listener starts waiting is not lost. Repeated broadcasts of
// the same flag before a wait collapse into one.
package event

import (
	"context"
	"sync"
	"time"
)

// Flags is a set of event bits.
type Flags uint32

const (
	// Power is broadcast once power has been negotiated.
	Power Flags = 1 << iota
	// Temp is broadcast after each temperature sample.
	Temp
	// PWM is broadcast after each heating burst.
	PWM
	// Alert is broadcast after an over-current trip was handled.
	Alert
)

// String returns a short name for single flags.
func (f Flags) String() string {
	switch f {
	case Power:
		return "POWER"
	case Temp:
		return "TEMP"
	case PWM:
		return "PWM"
	case Alert:
		return "ALERT"
	}
	return "FLAGS"
}

// Source broadcasts flags to registered listeners.
type Source struct {
	mu        sync.Mutex
	listeners []*Listener
	observers []func(Flags)
}

// NewSource creates an event source.
func NewSource() *Source {
	return &Source{}
}

// Listen registers a new listener for the given flags.
func (s *Source) Listen(mask Flags) *Listener {
	l := &Listener{
		mask:   mask,
		notify: make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	return l
}

// Observe registers fn to be called with every broadcast, in broadcast order.
// fn must not block or broadcast.
func (s *Source) Observe(fn func(Flags)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Broadcast sets flags on every interested listener.
func (s *Source) Broadcast(flags Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fn := range s.observers {
		fn(flags)
	}
	for _, l := range s.listeners {
		l.signal(flags)
	}
}

// Listener receives flags from a Source.
type Listener struct {
	mask    Flags
	mu      sync.Mutex
	pending Flags
	notify  chan struct{}
}

func (l *Listener) signal(flags Flags) {
	flags &= l.mask
	if flags == 0 {
		return
	}

	l.mu.Lock()
	l.pending |= flags
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// take clears and returns pending flags matching mask.
func (l *Listener) take(mask Flags) Flags {
	l.mu.Lock()
	defer l.mu.Unlock()

	got := l.pending & mask
	l.pending &^= got
	return got
}

// Pending returns the pending flags without clearing them.
func (l *Listener) Pending() Flags {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Clear drops pending flags matching mask.
func (l *Listener) Clear(mask Flags) {
	l.take(mask)
}

// Wait blocks until any flag in mask is pending, then clears and returns
// those flags.
func (l *Listener) Wait(ctx context.Context, mask Flags) (Flags, error) {
	for {
		if got := l.take(mask); got != 0 {
			return got, nil
		}
		select {
		case <-l.notify:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// WaitTimeout is like Wait but gives up after d and returns 0 with a nil error.
func (l *Listener) WaitTimeout(ctx context.Context, mask Flags, d time.Duration) (Flags, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		if got := l.take(mask); got != 0 {
			return got, nil
		}
		select {
		case <-l.notify:
		case <-timer.C:
			return l.take(mask), nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

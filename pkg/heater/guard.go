package heater

import (
	"sync/atomic"

	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
)

// Guard is the over-current interlock. Trip runs in interrupt context: it
// switches the heater off first and only then records the fault, without
// touching the station lock.
type Guard struct {
	pwm     hal.PWM
	handled uint32 // trip count at the last Clear
	notify  *event.Notifier
}

// NewGuard creates a guard that disables pwm on a trip.
func NewGuard(pwm hal.PWM) *Guard {
	return &Guard{pwm: pwm, notify: event.NewNotifier()}
}

// Trip is the over-current interrupt handler.
func (g *Guard) Trip() {
	g.pwm.Disable()
	g.notify.Notify()
}

// Tripped reports whether a trip is latched.
func (g *Guard) Tripped() bool {
	return g.Trips() != atomic.LoadUint32(&g.handled)
}

// Clear releases the latch for the first seen trips, as returned by Trips
// before the fault was handled. A later trip stays latched.
func (g *Guard) Clear(seen uint32) {
	atomic.StoreUint32(&g.handled, seen)
	g.notify.Drain()
}

// C receives a value after every trip.
func (g *Guard) C() <-chan struct{} {
	return g.notify.C()
}

// Trips returns the number of trips since start.
func (g *Guard) Trips() uint32 {
	return g.notify.Count()
}

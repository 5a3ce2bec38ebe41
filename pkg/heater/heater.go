// Package heater runs the heater control thread: one temperature step per
// sample, followed by a burst of current steps that drive the PWM.
package heater

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/control"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/station"
)

// Heater is the heater control thread.
type Heater struct {
	pwm   hal.PWM
	sense hal.PowerSense
	st    *station.Station
	src   *event.Source
	power *event.Gate
	temp  *event.Listener
	guard *Guard

	period     time.Duration
	inner      time.Duration
	iterations int
}

// New creates the heater thread. The TEMP listener is registered here so no
// sample is missed before Run starts.
func New(pwm hal.PWM, sense hal.PowerSense, guard *Guard, st *station.Station, src *event.Source, power *event.Gate, cfg *config.Config) *Heater {
	return &Heater{
		pwm:        pwm,
		sense:      sense,
		st:         st,
		src:        src,
		power:      power,
		temp:       src.Listen(event.Temp),
		guard:      guard,
		period:     cfg.Control.LoopPeriod,
		inner:      cfg.InnerPeriod(),
		iterations: cfg.Control.InnerIterations,
	}
}

// Run executes the heater loop until ctx is done. The PWM output is off
// whenever Run is not inside a burst.
func (h *Heater) Run(ctx context.Context) error {
	h.pwm.Disable()
	defer h.pwm.Disable()

	if err := h.power.Wait(ctx); err != nil {
		return err
	}

	outer := control.Seconds(h.period)
	for {
		if _, err := h.temp.Wait(ctx, event.Temp); err != nil {
			return err
		}

		h.st.Update(func(s *station.State) {
			control.TemperatureStep(s, outer)
		})

		tripped, err := h.burst(ctx)
		h.pwm.Disable()
		if err != nil {
			return err
		}
		if tripped || h.guard.Tripped() {
			h.fault()
		}

		h.src.Broadcast(event.PWM)
	}
}

// burst runs the inner loop. It reports whether the guard tripped.
func (h *Heater) burst(ctx context.Context) (bool, error) {
	dt := control.Seconds(h.inner)
	timer := time.NewTimer(h.inner)
	defer timer.Stop()

	for i := 0; i < h.iterations; i++ {
		var duty float32
		h.st.Update(func(s *station.State) {
			_ = control.CurrentStep(s, dt)
			duty = s.Power.PWM
		})

		if h.guard.Tripped() {
			return true, nil
		}
		h.pwm.Set(uint32(duty))
		if duty > 0 {
			h.pwm.Enable()
			// A trip between the check and Enable must not leave the output on.
			if h.guard.Tripped() {
				h.pwm.Disable()
				return true, nil
			}
		} else {
			h.pwm.Disable()
		}

		timer.Reset(h.inner)
		select {
		case <-timer.C:
		case <-h.guard.C():
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}

		v, a, err := h.sense.Read()
		if err != nil {
			log.Printf("Failed to read heater current: %v", err)
			continue
		}
		h.st.Update(func(s *station.State) {
			s.Power.Voltage = v
			s.Power.Current = a
			s.CurrentControl.Is = a
		})
	}
	return false, nil
}

func (h *Heater) fault() {
	seen := h.guard.Trips()
	var faults uint32
	h.st.Update(func(s *station.State) {
		s.Power.PWM = 0
		s.CurrentControl.Reset()
		s.Faults++
		faults = s.Faults
	})
	h.guard.Clear(seen)

	log.Printf("Over-current trip, heater off (faults: %d)", faults)
	h.src.Broadcast(event.Alert)
}

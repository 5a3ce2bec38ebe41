// Package control implements the temperature -> current cascade.
//
// The outer loop turns the temperature error into a heater current target,
// the inner loop turns the current error into a PWM duty ratio. Both loops
// operate on a station.State that the caller holds exclusively.
package control

import (
	"errors"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gotip/pkg/mathx"
	"github.com/itohio/gotip/pkg/station"
)

// ErrNoPower is returned by CurrentStep when no voltage has been negotiated.
var ErrNoPower = errors.New("control: no negotiated power")

// Active reports whether the loops may drive the heater.
func Active(s *station.State) bool {
	return s.Connected &&
		!s.Sleep &&
		s.TemperatureControl.Set <= s.Temperatures.Max &&
		s.TemperatureControl.Is <= s.Temperatures.Max
}

// LimitCurrent clamps a current target to what the source can supply.
// Both loops go through it so a lowered contract takes effect at once.
func LimitCurrent(target float32, s *station.State) float32 {
	limit := s.Power.CurrentNegotiated
	if limit < 0 {
		limit = 0
	}
	return mathx.Clamp(target, 0, limit)
}

// integrates reports whether e may be added to the integrator: it is a
// number and does not push out further past a bound.
func integrates(out, lo, hi, e float32) bool {
	if math32.IsNaN(e) {
		return false
	}
	return !((out >= hi && e > 0) || (out <= lo && e < 0))
}

// TemperatureStep runs the outer loop once. dt is the loop period in seconds.
func TemperatureStep(s *station.State, dt float32) {
	tc := &s.TemperatureControl
	cc := &s.CurrentControl

	if !Active(s) {
		tc.Reset()
		tc.SetLast = tc.Set
		cc.Set = 0
		return
	}

	if tc.Set != tc.SetLast {
		tc.IntegratedError = 0
		tc.SetLast = tc.Set
	}

	tc.Error = tc.Set - tc.Is
	if integrates(cc.Set, 0, s.Power.CurrentNegotiated, tc.Error) {
		tc.IntegratedError += tc.Error * dt
	}

	out := tc.P*tc.Error + tc.I*tc.IntegratedError + tc.D*(tc.Error-tc.ErrorLast)
	tc.ErrorLast = tc.Error
	cc.Set = LimitCurrent(finite(out), s)
}

// CurrentStep runs the inner loop once and writes the new duty ratio into
// s.Power.PWM. dt is the inner loop period in seconds.
func CurrentStep(s *station.State, dt float32) error {
	cc := &s.CurrentControl
	p := &s.Power

	p.PWMMax = mathx.Clamp(p.PWMMax, 0, station.PWMMaxPercentage)

	if !Active(s) {
		cc.Reset()
		p.PWM = 0
		return nil
	}
	if p.VoltageNegotiated <= 0 {
		cc.Reset()
		p.PWM = 0
		return ErrNoPower
	}

	cc.Set = LimitCurrent(cc.Set, s)
	cc.Error = cc.Set - cc.Is + p.CurrentOffset
	if integrates(p.PWM, 0, p.PWMMax, cc.Error) {
		cc.IntegratedError += cc.Error * dt
	}

	out := p.PWMMax * (cc.P*cc.Error + cc.I*cc.IntegratedError + cc.D*(cc.Error-cc.ErrorLast)) / p.VoltageNegotiated
	cc.ErrorLast = cc.Error
	p.PWM = mathx.Clamp(finite(out), 0, p.PWMMax)
	return nil
}

// finite maps NaN to 0 so a bad reading can never drive the output.
func finite(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return v
}

// Seconds converts a loop period to the seconds used by the integrators.
func Seconds(d time.Duration) float32 {
	return float32(d) / float32(time.Second)
}

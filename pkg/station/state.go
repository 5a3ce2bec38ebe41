// Package station holds the shared state of the soldering station.
package station

import (
	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/mathx"
	"github.com/itohio/gotip/pkg/tool"
)

// PWMMaxPercentage is the full scale of the heater duty ratio.
const PWMMaxPercentage = 10000

// Loop is the state of a single PID loop.
type Loop struct {
	Is              float32 // Measured value
	Set             float32 // Target value
	P, I, D         float32 // Gains
	Error           float32
	ErrorLast       float32
	IntegratedError float32
	SetLast         float32 // Target seen on the previous step
}

// Reset clears the error terms.
func (l *Loop) Reset() {
	l.Error = 0
	l.ErrorLast = 0
	l.IntegratedError = 0
}

// Power holds negotiated limits and live electrical measurements.
type Power struct {
	VoltageNegotiated float32 // V
	CurrentNegotiated float32 // A
	PowerNegotiated   float32 // W
	Voltage           float32 // Measured V
	Current           float32 // Measured A
	CurrentOffset     float32 // Zero-load bias (A), captured while disconnected
	PWM               float32 // 0..PWMMax
	PWMMax            float32 // 0..PWMMaxPercentage
	Resistance        float32 // Heater resistance (Ohm)
	SafetyMargin      float32
}

// Temperatures holds setpoint bounds and auxiliary readings in °C.
type Temperatures struct {
	Min   float32
	Max   float32
	Local float32 // Cold junction
}

// State is the station record shared between threads.
type State struct {
	Connected bool
	Sleep     bool
	Debounce  int // Consecutive connected-looking samples seen while disconnected
	Faults    uint32
	Tool      string

	Power              Power
	Temperatures       Temperatures
	TemperatureControl Loop
	CurrentControl     Loop
}

// Negotiated reports whether power limits are available.
func (s *State) Negotiated() bool {
	return s.Power.VoltageNegotiated > 0
}

// PowerRatio returns the delivered power as a fraction of the negotiated power.
func (s *State) PowerRatio() float32 {
	return mathx.Ratio((s.Power.Current-s.Power.CurrentOffset)*s.Power.Voltage, s.Power.PowerNegotiated)
}

// Default returns a conservative state built from the configuration.
// Heating stays off until power is negotiated and a probe is connected.
func Default(cfg *config.Config) State {
	s := State{
		Power: Power{
			Resistance:   cfg.Power.Resistance,
			SafetyMargin: cfg.Power.SafetyMargin,
		},
		Temperatures: Temperatures{
			Min: cfg.Temperatures.Min,
			Max: cfg.Temperatures.Max,
		},
		TemperatureControl: Loop{
			Set: cfg.Temperatures.Set,
			P:   cfg.Control.Temperature.P,
			I:   cfg.Control.Temperature.I,
			D:   cfg.Control.Temperature.D,
		},
		CurrentControl: Loop{
			P: cfg.Control.Current.P,
			I: cfg.Control.Current.I,
			D: cfg.Control.Current.D,
		},
	}
	if p, err := tool.NewLibrary(cfg).Find(cfg.Tool); err == nil {
		s.UseTool(p)
	}
	return s
}

// UseTool applies the profile's name, temperature loop gains and heater
// resistance.
func (s *State) UseTool(p tool.Profile) {
	s.Tool = p.Name
	if p.Gains != (config.GainsConfig{}) {
		s.TemperatureControl.P = p.Gains.P
		s.TemperatureControl.I = p.Gains.I
		s.TemperatureControl.D = p.Gains.D
	}
	if p.Resistance > 0 {
		s.Power.Resistance = p.Resistance
	}
}

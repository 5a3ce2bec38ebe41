package pd

import (
	"github.com/itohio/gotip/pkg/mathx"
	"github.com/itohio/gotip/pkg/station"
	"github.com/itohio/gotip/pkg/tool"
)

// Limits are the heater limits derived from a power contract.
type Limits struct {
	Voltage float32 // V
	Current float32 // A
	Power   float32 // W
	PWMMax  float32 // 0..station.PWMMaxPercentage
	IGain   float32 // Temperature loop I gain, 0 = unchanged
}

// ComputeLimits derives heater limits from the contracted PDO.
//
// The usable current is the contract current, capped by the tool's power
// rating. PWMMax keeps the average heater current at margin times that
// current given the heater's resistance.
func ComputeLimits(contract PDO, resistance, margin, iPerWatt float32, profile *tool.Profile) Limits {
	v := contract.Voltage()
	i := contract.Current()
	if profile != nil {
		if limit := profile.CurrentLimit(v); limit < i {
			i = limit
		}
	}

	l := Limits{
		Voltage: v,
		Current: i,
		Power:   v * i,
	}

	if v > 0 && resistance > 0 {
		full := v / resistance
		l.PWMMax = mathx.Clamp(margin*station.PWMMaxPercentage*i/full, 0, station.PWMMaxPercentage)
	}
	if iPerWatt > 0 {
		l.IGain = iPerWatt * l.Power
	}
	return l
}

// Apply writes the limits into the station state.
func (l Limits) Apply(s *station.State) {
	s.Power.VoltageNegotiated = l.Voltage
	s.Power.CurrentNegotiated = l.Current
	s.Power.PowerNegotiated = l.Power
	s.Power.PWMMax = l.PWMMax
	if l.IGain > 0 {
		s.TemperatureControl.I = l.IGain
	}
}

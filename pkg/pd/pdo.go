// Package pd negotiates heater power with a USB Power Delivery source
// through an STUSB4500 sink controller.
package pd

import (
	"errors"

	"github.com/chewxy/math32"
)

var (
	// ErrTimeout is returned when the source does not answer a soft reset.
	ErrTimeout = errors.New("pd: timeout waiting for source")
	// ErrNoSourceCapabilities is returned when no capabilities were received.
	ErrNoSourceCapabilities = errors.New("pd: no source capabilities")
	// ErrNoFixedPDO is returned when the source offers no usable fixed supply.
	ErrNoFixedPDO = errors.New("pd: no fixed supply PDO")
)

// PDO is a raw power data object.
//
//	bits 31..30 supply type, 0 = fixed
//	bits 19..10 voltage in 50 mV units
//	bits  9..0  maximum current in 10 mA units
type PDO uint32

const (
	voltageUnit = 0.05
	currentUnit = 0.01
	fieldMask   = 0x3FF
)

// FixedPDO encodes a fixed supply object.
func FixedPDO(voltage, current float32) PDO {
	v := uint32(math32.Round(voltage/voltageUnit)) & fieldMask
	i := uint32(math32.Round(current/currentUnit)) & fieldMask
	return PDO(v<<10 | i)
}

// Fixed reports whether the object describes a fixed supply.
func (p PDO) Fixed() bool {
	return p>>30 == 0
}

// Voltage returns the supply voltage in V.
func (p PDO) Voltage() float32 {
	return float32((p>>10)&fieldMask) * voltageUnit
}

// Current returns the maximum current in A.
func (p PDO) Current() float32 {
	return float32(p&fieldMask) * currentUnit
}

// Power returns the offered power in W.
func (p PDO) Power() float32 {
	return p.Voltage() * p.Current()
}

// WithSupply replaces voltage and current, keeping the remaining bits.
func (p PDO) WithSupply(voltage, current float32) PDO {
	f := FixedPDO(voltage, current)
	return p&^(fieldMask<<10|fieldMask) | f
}

// SelectHighest picks the fixed PDO with the highest power at or below
// maxVoltage (0 = any). The first object is the mandatory 5 V supply and is
// the fallback; later objects win only with strictly more power. It returns
// the 1-based position of the winner.
func SelectHighest(caps []PDO, maxVoltage float32) (int, PDO, error) {
	if len(caps) == 0 {
		return 0, 0, ErrNoSourceCapabilities
	}

	best := -1
	var bestPower float32
	for i, p := range caps {
		if !p.Fixed() || p.Voltage() <= 0 {
			continue
		}
		if maxVoltage > 0 && p.Voltage() > maxVoltage {
			continue
		}
		if best < 0 || p.Power() > bestPower {
			best, bestPower = i, p.Power()
		}
	}
	if best < 0 {
		return 0, 0, ErrNoFixedPDO
	}
	return best + 1, caps[best], nil
}

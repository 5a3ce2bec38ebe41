// Package sensor samples the thermocouple and tracks probe presence.
package sensor

import (
	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/tool"
)

// Converter turns raw ADS1118 readings into temperatures.
type Converter struct {
	Calibration tool.Calibration
	LocalLSB    float32
	Disconnect  int16
}

// NewConverter builds a converter from the sensor configuration.
// A non-nil profile overrides the calibration.
func NewConverter(cfg *config.SensorConfig, profile *tool.Profile) Converter {
	cal := tool.Calibration{
		Quadratic: cfg.Quadratic,
		Slope:     cfg.Slope,
		Offset:    cfg.Offset,
	}
	if profile != nil {
		cal = profile.Calibration
	}
	return Converter{
		Calibration: cal,
		LocalLSB:    cfg.LocalLSB,
		Disconnect:  cfg.Disconnect,
	}
}

// Temperature returns the compensated tip temperature.
func (c Converter) Temperature(raw int16, local float32) float32 {
	return c.Calibration.Temperature(raw) + local
}

// Local converts an internal sensor reading. The sensor result is 14 bits,
// left aligned.
func (c Converter) Local(raw int16) float32 {
	return float32(raw>>2) * c.LocalLSB
}

// Disconnected reports whether raw is the open-probe sentinel.
func (c Converter) Disconnected(raw int16) bool {
	return raw == c.Disconnect
}

// Debouncer is slow to connect and fast to disconnect: it needs threshold
// consecutive good samples before reporting connected, while a single
// disconnected sample drops the connection and restarts the count.
type Debouncer struct {
	threshold int
	count     int
	connected bool
}

// NewDebouncer creates a debouncer needing threshold good samples.
func NewDebouncer(threshold int) *Debouncer {
	if threshold < 1 {
		threshold = 1
	}
	return &Debouncer{threshold: threshold}
}

// Update feeds one sample and returns the connection state.
func (d *Debouncer) Update(disconnected bool) bool {
	if disconnected {
		d.count = 0
		d.connected = false
		return false
	}
	if d.count < d.threshold {
		d.count++
	}
	if d.count >= d.threshold {
		d.connected = true
	}
	return d.connected
}

// Connected returns the current state.
func (d *Debouncer) Connected() bool {
	return d.connected
}

// Count returns the consecutive good samples seen, capped at the threshold.
func (d *Debouncer) Count() int {
	return d.count
}

// Threshold returns the good samples needed to connect.
func (d *Debouncer) Threshold() int {
	return d.threshold
}

package hal

import (
	"github.com/itohio/gotip/pkg/config"
)

// AnalogSense reads heater voltage and current from two ADC channels.
type AnalogSense struct {
	voltage ADC
	current ADC

	vref    float32
	divider float32 // Input volts per ADC volt
	sense   float32 // Amps per ADC volt
	samples int
}

var _ PowerSense = (*AnalogSense)(nil)

// NewAnalogSense creates a power sense over the given channels.
// samples readings are averaged per Read, at least one.
func NewAnalogSense(voltage, current ADC, cfg *config.PowerConfig, samples int) *AnalogSense {
	if samples < 1 {
		samples = 1
	}
	return &AnalogSense{
		voltage: voltage,
		current: current,
		vref:    cfg.ADCReference,
		divider: cfg.VoltageDivider,
		sense:   cfg.CurrentSense,
		samples: samples,
	}
}

// Read returns the averaged supply voltage (V) and heater current (A).
func (a *AnalogSense) Read() (float32, float32, error) {
	var sumV, sumI uint32
	for range a.samples {
		sumV += uint32(a.voltage.Get())
		sumI += uint32(a.current.Get())
	}

	v := adcToVoltage(uint16(sumV/uint32(a.samples)), a.vref)
	i := adcToVoltage(uint16(sumI/uint32(a.samples)), a.vref)

	return voltageDivider(v, a.divider), i * a.sense, nil
}

// ReadRatio averages samples reads of a and returns the result as a
// fraction of full scale.
func ReadRatio(a ADC, samples int) float32 {
	if samples < 1 {
		samples = 1
	}
	var sum uint32
	for range samples {
		sum += uint32(a.Get())
	}
	return float32(sum/uint32(samples)) / 65535.0
}

// adcToVoltage converts a left-aligned 16-bit ADC reading to voltage.
func adcToVoltage(adc uint16, vref float32) float32 {
	return (float32(adc) / 65535.0) * vref
}

// voltageDivider calculates the input voltage from the measured output voltage.
func voltageDivider(vout, ratio float32) float32 {
	return vout * ratio
}

// VoltageToADC is the inverse of the ADC conversion, used by simulated channels.
func VoltageToADC(v, vref float32) uint16 {
	if v <= 0 || vref <= 0 {
		return 0
	}
	raw := v / vref * 65535.0
	if raw >= 65535 {
		return 65535
	}
	return uint16(raw + 0.5)
}

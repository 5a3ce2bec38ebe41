// Package hal defines the peripherals the station core drives and senses.
package hal

// PWM switches the heater. Duty is in 0..station.PWMMaxPercentage.
// Disable must be safe to call from interrupt context.
type PWM interface {
	Set(duty uint32)
	Enable()
	Disable()
}

// ADC is a single analog channel. Get returns a left-aligned 16-bit value
// like TinyGo's machine.ADC.
type ADC interface {
	Get() uint16
}

// PowerSense measures the heater supply.
type PowerSense interface {
	Read() (voltage, current float32, err error)
}

// Input is a digital input; true means active (pressed, in stand).
type Input interface {
	Get() bool
}

// LED is a single status light.
type LED interface {
	Set(on bool)
}

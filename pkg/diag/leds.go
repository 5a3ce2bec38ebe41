// Package diag drives the status LEDs and the UART telemetry line.
package diag

// State is the status shown on the LEDs.
type State int

const (
	Disconnected State = iota
	Waiting
	Connecting
	Heating
	TemperatureReached
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Waiting:
		return "waiting"
	case Connecting:
		return "connecting"
	case Heating:
		return "heating"
	case TemperatureReached:
		return "temperature_reached"
	}
	return "unknown"
}

// Pattern is what the indicator LED does in a state.
type Pattern int

const (
	Off Pattern = iota
	BlinkSlow
	Blink
	On
)

// HeatingBand is the distance below the setpoint still shown as heating.
const HeatingBand = 10

// Machine is the LED state machine. Disconnected and Connecting are
// transient states that blank the LEDs for one sample.
type Machine struct {
	state State
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Step returns the pattern for the current state and moves to the next one.
func (m *Machine) Step(connected bool, is, set float32) Pattern {
	switch m.state {
	case Disconnected:
		m.state = Waiting
		return Off

	case Waiting:
		if connected {
			m.state = Connecting
		}
		return BlinkSlow

	case Connecting:
		m.state = Heating
		return Off

	case Heating, TemperatureReached:
		p := Blink
		if m.state == TemperatureReached {
			p = On
		}
		switch {
		case !connected:
			m.state = Disconnected
		case is < set && set-is > HeatingBand:
			m.state = Heating
		default:
			m.state = TemperatureReached
		}
		return p
	}
	return Off
}

package telemetry

// Source defines a telemetry source (serial port or simulator).
type Source interface {
	Connect() error
	Close() error
	Records() <-chan Record
	IsConnected() bool
}

// Setpoint is implemented by sources whose setpoint can be changed from the
// host. A real station only transmits.
type Setpoint interface {
	SetTemperature(t float32) float32
	Temperature() float32
}

// Ensure Serial implements Source.
var _ Source = (*Serial)(nil)

// Ensure Mock implements Source and Setpoint.
var (
	_ Source   = (*Mock)(nil)
	_ Setpoint = (*Mock)(nil)
)

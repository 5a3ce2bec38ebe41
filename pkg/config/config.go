package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is returned by Validate for inconsistent configuration.
var ErrInvalid = errors.New("config: invalid")

// Config represents the station configuration.
type Config struct {
	Control      ControlConfig      `yaml:"control"`
	Sensor       SensorConfig       `yaml:"sensor"`
	Power        PowerConfig        `yaml:"power"`
	Temperatures TemperaturesConfig `yaml:"temperatures"`
	UI           UIConfig           `yaml:"ui"`
	Tool         string             `yaml:"tool"` // Selected tool profile name, empty = none
	Tools        []ToolConfig       `yaml:"tools"`
	Serial       SerialConfig       `yaml:"serial"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Alert        AlertConfig        `yaml:"alert"`
	Measurement  MeasurementConfig  `yaml:"measurement"`
	Sim          SimConfig          `yaml:"sim"`
}

// ControlConfig contains cascade loop timing and gains.
type ControlConfig struct {
	LoopPeriod      time.Duration `yaml:"loop_period"`      // Outer (temperature) loop period
	InnerIterations int           `yaml:"inner_iterations"` // Current loop steps per outer step
	Temperature     GainsConfig   `yaml:"temperature"`      // Outer loop gains, output in A
	Current         GainsConfig   `yaml:"current"`          // Inner loop gains, output in V
	IPerWatt        float32       `yaml:"i_per_watt"`       // Outer I gain per negotiated W, 0 = keep Temperature.I
}

// GainsConfig contains PID gains.
type GainsConfig struct {
	P float32 `yaml:"p"`
	I float32 `yaml:"i"`
	D float32 `yaml:"d"`
}

// SensorConfig contains thermocouple front-end calibration.
type SensorConfig struct {
	Slope           float32       `yaml:"slope"`            // °C per LSB
	Offset          float32       `yaml:"offset"`           // °C
	Quadratic       float32       `yaml:"quadratic"`        // °C per LSB², usually 0
	LocalLSB        float32       `yaml:"local_lsb"`        // °C per LSB of the internal sensor
	Disconnect      int16         `yaml:"disconnect"`       // Raw sentinel reported with an open probe
	ConnectDebounce time.Duration `yaml:"connect_debounce"` // Good samples needed before connecting
	ReadDelay       time.Duration `yaml:"read_delay"`       // Conversion time
	DeadTime        time.Duration `yaml:"dead_time"`        // Settling after a heating burst
}

// PowerConfig contains power delivery and current sense parameters.
type PowerConfig struct {
	Resistance       float32       `yaml:"resistance"`        // Heater resistance (Ohm)
	SafetyMargin     float32       `yaml:"safety_margin"`     // Fraction of negotiated current usable
	MaxVoltage       float32       `yaml:"max_voltage"`       // Highest acceptable source voltage (V), 0 = any
	Timeout          time.Duration `yaml:"timeout"`           // Wait for PD alert after soft reset
	RetryBackoff     time.Duration `yaml:"retry_backoff"`     // Pause between failed exchanges
	PollAttempts     int           `yaml:"poll_attempts"`     // Alert polls per exchange
	CurrentSense     float32       `yaml:"current_sense"`     // A per V at the current sense ADC
	VoltageDivider   float32       `yaml:"voltage_divider"`   // Input V per V at the voltage ADC
	ADCReference     float32       `yaml:"adc_reference"`     // V
	ADCResolution    int           `yaml:"adc_resolution"`    // bits
	OvercurrentLimit float32       `yaml:"overcurrent_limit"` // A, hardware comparator threshold
}

// TemperaturesConfig contains setpoint bounds in °C.
type TemperaturesConfig struct {
	Min   float32 `yaml:"min"`
	Max   float32 `yaml:"max"`
	Set   float32 `yaml:"set"`
	Stand float32 `yaml:"stand"`
}

// UIConfig contains button and stand handling parameters.
type UIConfig struct {
	Debounce   int           `yaml:"debounce"`    // Identical polls before a press counts
	PollPeriod time.Duration `yaml:"poll_period"` // Button poll period
	Step       float32       `yaml:"step"`        // °C per press
	AutoSleep  time.Duration `yaml:"auto_sleep"`  // Time in stand before sleeping, 0 = immediately
	NoSleep    bool          `yaml:"no_sleep"`    // Never sleep in the stand
}

// ToolConfig describes a tool (handpiece) profile.
type ToolConfig struct {
	Name        string      `yaml:"name"`
	MaxPower    float32     `yaml:"max_power"`    // W
	Resistance  float32     `yaml:"resistance"`   // Ohm
	DetectRatio float32     `yaml:"detect_ratio"` // Identification divider ratio
	Slope       float32     `yaml:"slope"`        // °C per LSB, 0 = sensor default
	Offset      float32     `yaml:"offset"`       // °C
	Quadratic   float32     `yaml:"quadratic"`    // °C per LSB²
	Gains       GainsConfig `yaml:"gains"`        // Temperature loop gains, zero = control default
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig contains telemetry broker configuration.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"` // Empty disables publishing
	ClientID string        `yaml:"client_id"`
	Prefix   string        `yaml:"prefix"`
	QoS      byte          `yaml:"qos"`
	Retained bool          `yaml:"retained"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AlertConfig contains the host GPIO line used for the over-current alert.
type AlertConfig struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"` // Negative disables the alert input
}

// MeasurementConfig contains host-side analysis parameters.
type MeasurementConfig struct {
	WindowSeconds    float64 `yaml:"window_seconds"`
	RateThreshold    float64 `yaml:"rate_threshold"`     // °C/s above which a heat-up phase is detected
	MinPhaseDuration float64 `yaml:"min_phase_duration"` // Minimum phase duration in seconds (filters noise)
	AverageSamples   int     `yaml:"average_samples"`    // Number of samples to average (0 = disabled, default)
}

// SimConfig contains simulated plant parameters.
type SimConfig struct {
	Ambient      float32       `yaml:"ambient"`       // °C
	ThermalMass  float32       `yaml:"thermal_mass"`  // J/°C
	Loss         float32       `yaml:"loss"`          // W/°C
	Resistance   float32       `yaml:"resistance"`    // Heater resistance (Ohm)
	NoiseLevel   float32       `yaml:"noise_level"`   // Raw LSB
	SourcePDOs   []PDOConfig   `yaml:"source_pdos"`   // Source capabilities offered to the sink
	AlertLatency time.Duration `yaml:"alert_latency"` // Delay before the source answers a soft reset
	TimeStep     time.Duration `yaml:"time_step"`     // Plant integration step
	ToolRatio    float32       `yaml:"tool_ratio"`    // Tool identification divider ratio, negative = no divider
}

// PDOConfig describes a fixed supply PDO.
type PDOConfig struct {
	Voltage float32 `yaml:"voltage"` // V
	Current float32 `yaml:"current"` // A
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Control: ControlConfig{
			LoopPeriod:      100 * time.Millisecond,
			InnerIterations: 5,
			Temperature:     GainsConfig{P: 0.2, I: 0.5, D: 0},
			Current:         GainsConfig{P: 2, I: 100},
			IPerWatt:        0,
		},
		Sensor: SensorConfig{
			Slope:           0.2706,
			Offset:          5,
			LocalLSB:        0.03125,
			Disconnect:      32767,
			ConnectDebounce: time.Second,
			ReadDelay:       1200 * time.Microsecond,
			DeadTime:        500 * time.Microsecond,
		},
		Power: PowerConfig{
			Resistance:       3.3,
			SafetyMargin:     0.9,
			MaxVoltage:       20,
			Timeout:          100 * time.Millisecond,
			RetryBackoff:     100 * time.Millisecond,
			PollAttempts:     500,
			CurrentSense:     5,  // 0.2 V/A shunt amplifier
			VoltageDivider:   11, // 100k/10k
			ADCReference:     3.3,
			ADCResolution:    12,
			OvercurrentLimit: 10,
		},
		Temperatures: TemperaturesConfig{
			Min:   150,
			Max:   450,
			Set:   300,
			Stand: 150,
		},
		UI: UIConfig{
			Debounce:   5,
			PollPeriod: 10 * time.Millisecond,
			Step:       10,
			AutoSleep:  5 * time.Minute,
		},
		Tools: []ToolConfig{
			{
				Name:        "T210",
				MaxPower:    60,
				Resistance:  2,
				DetectRatio: 0,
				Gains:       GainsConfig{P: 0.04, I: 0.5},
			},
			{
				Name:        "T245",
				MaxPower:    130,
				Resistance:  2.8,
				DetectRatio: 0.5,
				Gains:       GainsConfig{P: 0.2, I: 0.5},
			},
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		MQTT: MQTTConfig{
			ClientID: "gotip",
			Prefix:   "gotip",
			QoS:      0,
			Timeout:  5 * time.Second,
		},
		Alert: AlertConfig{
			Chip: "gpiochip0",
			Line: -1,
		},
		Measurement: MeasurementConfig{
			WindowSeconds:    60,
			RateThreshold:    5,
			MinPhaseDuration: 1.0, // Filter phases shorter than 1 second
			AverageSamples:   0,   // No averaging by default
		},
		Sim: SimConfig{
			Ambient:     25,
			ThermalMass: 2.5,
			Loss:        0.12,
			Resistance:  3.3,
			NoiseLevel:  0,
			SourcePDOs: []PDOConfig{
				{Voltage: 5, Current: 3},
				{Voltage: 9, Current: 3},
				{Voltage: 15, Current: 3},
				{Voltage: 20, Current: 3.25},
			},
			AlertLatency: 5 * time.Millisecond,
			TimeStep:     time.Millisecond,
			ToolRatio:    -1,
		},
	}
}

// DebounceCount returns the number of consecutive connected samples needed
// before a probe counts as connected.
func (c *Config) DebounceCount() int {
	if c.Control.LoopPeriod <= 0 {
		return 1
	}
	n := int(c.Sensor.ConnectDebounce / c.Control.LoopPeriod)
	if n < 1 {
		return 1
	}
	return n
}

// InnerPeriod returns the duration of a single current loop step.
func (c *Config) InnerPeriod() time.Duration {
	if c.Control.InnerIterations < 1 {
		return c.Control.LoopPeriod
	}
	return c.Control.LoopPeriod / time.Duration(c.Control.InnerIterations)
}

// FindTool returns the tool profile with the given name.
func (c *Config) FindTool(name string) (ToolConfig, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	switch {
	case c.Control.LoopPeriod <= 0:
		return fmt.Errorf("%w: control.loop_period must be positive", ErrInvalid)
	case c.Control.InnerIterations < 1:
		return fmt.Errorf("%w: control.inner_iterations must be at least 1", ErrInvalid)
	case c.Temperatures.Min > c.Temperatures.Max:
		return fmt.Errorf("%w: temperatures.min %.0f above max %.0f", ErrInvalid, c.Temperatures.Min, c.Temperatures.Max)
	case c.Temperatures.Set < c.Temperatures.Min || c.Temperatures.Set > c.Temperatures.Max:
		return fmt.Errorf("%w: temperatures.set %.0f outside [%.0f, %.0f]", ErrInvalid, c.Temperatures.Set, c.Temperatures.Min, c.Temperatures.Max)
	case c.Power.Resistance <= 0:
		return fmt.Errorf("%w: power.resistance must be positive", ErrInvalid)
	case c.Power.SafetyMargin <= 0 || c.Power.SafetyMargin > 1:
		return fmt.Errorf("%w: power.safety_margin must be in (0, 1]", ErrInvalid)
	}
	if c.Tool != "" {
		if _, ok := c.FindTool(c.Tool); !ok {
			return fmt.Errorf("%w: unknown tool %q", ErrInvalid, c.Tool)
		}
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Control.LoopPeriod == 0 {
		c.Control.LoopPeriod = def.Control.LoopPeriod
	}
	if c.Control.InnerIterations == 0 {
		c.Control.InnerIterations = def.Control.InnerIterations
	}
	if c.Control.Temperature == (GainsConfig{}) {
		c.Control.Temperature = def.Control.Temperature
	}
	if c.Control.Current == (GainsConfig{}) {
		c.Control.Current = def.Control.Current
	}

	if c.Sensor.Slope == 0 {
		c.Sensor.Slope = def.Sensor.Slope
	}
	if c.Sensor.LocalLSB == 0 {
		c.Sensor.LocalLSB = def.Sensor.LocalLSB
	}
	if c.Sensor.Disconnect == 0 {
		c.Sensor.Disconnect = def.Sensor.Disconnect
	}
	if c.Sensor.ConnectDebounce == 0 {
		c.Sensor.ConnectDebounce = def.Sensor.ConnectDebounce
	}
	if c.Sensor.ReadDelay == 0 {
		c.Sensor.ReadDelay = def.Sensor.ReadDelay
	}

	if c.Power.Resistance == 0 {
		c.Power.Resistance = def.Power.Resistance
	}
	if c.Power.SafetyMargin == 0 {
		c.Power.SafetyMargin = def.Power.SafetyMargin
	}
	if c.Power.Timeout == 0 {
		c.Power.Timeout = def.Power.Timeout
	}
	if c.Power.RetryBackoff == 0 {
		c.Power.RetryBackoff = def.Power.RetryBackoff
	}
	if c.Power.PollAttempts == 0 {
		c.Power.PollAttempts = def.Power.PollAttempts
	}
	if c.Power.CurrentSense == 0 {
		c.Power.CurrentSense = def.Power.CurrentSense
	}
	if c.Power.VoltageDivider == 0 {
		c.Power.VoltageDivider = def.Power.VoltageDivider
	}
	if c.Power.ADCReference == 0 {
		c.Power.ADCReference = def.Power.ADCReference
	}
	if c.Power.ADCResolution == 0 {
		c.Power.ADCResolution = def.Power.ADCResolution
	}

	if c.Temperatures == (TemperaturesConfig{}) {
		c.Temperatures = def.Temperatures
	}

	if c.UI.Debounce == 0 {
		c.UI.Debounce = def.UI.Debounce
	}
	if c.UI.PollPeriod == 0 {
		c.UI.PollPeriod = def.UI.PollPeriod
	}
	if c.UI.Step == 0 {
		c.UI.Step = def.UI.Step
	}

	if len(c.Tools) == 0 {
		c.Tools = def.Tools
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = def.MQTT.Prefix
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = def.MQTT.Timeout
	}

	if c.Alert.Chip == "" {
		c.Alert.Chip = def.Alert.Chip
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.RateThreshold == 0 {
		c.Measurement.RateThreshold = def.Measurement.RateThreshold
	}

	if c.Sim.ThermalMass == 0 {
		c.Sim.ThermalMass = def.Sim.ThermalMass
	}
	if c.Sim.Loss == 0 {
		c.Sim.Loss = def.Sim.Loss
	}
	if c.Sim.Resistance == 0 {
		c.Sim.Resistance = def.Sim.Resistance
	}
	if len(c.Sim.SourcePDOs) == 0 {
		c.Sim.SourcePDOs = def.Sim.SourcePDOs
	}
	if c.Sim.TimeStep == 0 {
		c.Sim.TimeStep = def.Sim.TimeStep
	}
}

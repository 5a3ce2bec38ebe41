// Package sim simulates the soldering station hardware: the tip's thermal
// response, the heater supply negotiated over USB-PD, the thermocouple ADC
// and the over-current comparator.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/pd"
	"github.com/itohio/gotip/pkg/station"
	"github.com/itohio/gotip/pkg/tool"
)

// shortResistance is the heater resistance seen during a simulated short.
const shortResistance = 0.05

// Plant is the simulated station hardware.
type Plant struct {
	cfg    config.SimConfig
	sensor config.SensorConfig
	power  config.PowerConfig
	cal    tool.Calibration

	mu          sync.Mutex
	elapsed     time.Duration
	temperature float32
	probe       bool
	short       bool
	supply      float32
	duty        uint32
	enabled     bool
	energy      float32 // J delivered to the tip

	onOvercurrent func()

	ads  *ads1118
	stus *stusb4500
}

// New creates a plant at ambient temperature with a connected probe and
// the USB default 5 V supply.
func New(cfg *config.Config) *Plant {
	cal := tool.Calibration{
		Quadratic: cfg.Sensor.Quadratic,
		Slope:     cfg.Sensor.Slope,
		Offset:    cfg.Sensor.Offset,
	}
	lib := tool.NewLibrary(cfg)
	if p, err := lib.Find(cfg.Tool); err == nil {
		cal = p.Calibration
	} else if cfg.Tool == "" && cfg.Sim.ToolRatio >= 0 {
		if p, err := lib.Detect(cfg.Sim.ToolRatio); err == nil {
			cal = p.Calibration
		}
	}

	p := &Plant{
		cfg:         cfg.Sim,
		sensor:      cfg.Sensor,
		power:       cfg.Power,
		cal:         cal,
		temperature: cfg.Sim.Ambient,
		probe:       true,
		supply:      5,
	}
	p.ads = &ads1118{plant: p}
	p.stus = newSTUSB4500(p, cfg.Sim)
	return p
}

// SPI returns the bus the simulated ADS1118 sits on.
func (p *Plant) SPI() drivers.SPI {
	return p.ads
}

// I2C returns the bus the simulated STUSB4500 sits on.
func (p *Plant) I2C() drivers.I2C {
	return p.stus
}

// PWM returns the heater switch.
func (p *Plant) PWM() hal.PWM {
	return (*plantPWM)(p)
}

// VoltageADC returns the supply voltage channel.
func (p *Plant) VoltageADC() hal.ADC {
	return adcFunc(func() uint16 {
		v, _ := p.electrical()
		return hal.VoltageToADC(v/p.power.VoltageDivider, p.power.ADCReference)
	})
}

// CurrentADC returns the heater current channel. The sense amplifier is
// filtered, so it reads the average current over the PWM period.
func (p *Plant) CurrentADC() hal.ADC {
	return adcFunc(func() uint16 {
		_, i := p.electrical()
		return hal.VoltageToADC(i/p.power.CurrentSense, p.power.ADCReference)
	})
}

// DetectADC returns the tool identification divider channel.
func (p *Plant) DetectADC() hal.ADC {
	return adcFunc(func() uint16 {
		return hal.VoltageToADC(p.cfg.ToolRatio*p.power.ADCReference, p.power.ADCReference)
	})
}

// OnAlert registers the PD controller alert handler.
func (p *Plant) OnAlert(fn func()) {
	p.stus.setAlert(fn)
}

// OnOvercurrent registers the over-current comparator handler. It is called
// from the goroutine that advances the plant, like an interrupt.
func (p *Plant) OnOvercurrent(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOvercurrent = fn
}

// SetProbe connects or disconnects the thermocouple.
func (p *Plant) SetProbe(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probe = connected
}

// Short shorts the heater, driving the on-phase current past the
// comparator threshold.
func (p *Plant) Short(on bool) {
	p.mu.Lock()
	p.short = on
	p.mu.Unlock()
	p.checkOvercurrent()
}

// Temperature returns the tip temperature in °C.
func (p *Plant) Temperature() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temperature
}

// Supply returns the contracted supply voltage.
func (p *Plant) Supply() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.supply
}

// Output returns the PWM duty and whether the output is enabled.
func (p *Plant) Output() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty, p.enabled
}

// Energy returns the energy delivered to the tip so far in J.
func (p *Plant) Energy() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.energy
}

// Run advances the plant in real time until ctx is done.
func (p *Plant) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TimeStep)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			p.Step(now.Sub(last))
			last = now
		}
	}
}

// Step advances the thermal model by dt.
func (p *Plant) Step(dt time.Duration) {
	p.mu.Lock()
	s := float32(dt.Seconds())
	p.elapsed += dt
	heat := p.heaterPowerLocked()
	loss := p.cfg.Loss * (p.temperature - p.cfg.Ambient)
	p.energy += heat * s
	if p.cfg.ThermalMass > 0 {
		p.temperature += (heat - loss) * s / p.cfg.ThermalMass
	}
	p.mu.Unlock()

	p.checkOvercurrent()
}

func (p *Plant) resistanceLocked() float32 {
	if p.short {
		return shortResistance
	}
	return p.cfg.Resistance
}

// heaterPowerLocked returns the average heater power in W.
func (p *Plant) heaterPowerLocked() float32 {
	if !p.enabled {
		return 0
	}
	r := p.resistanceLocked()
	return p.supply * p.supply / r * float32(p.duty) / station.PWMMaxPercentage
}

// electrical returns the supply voltage and the average heater current.
func (p *Plant) electrical() (float32, float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return p.supply, 0
	}
	return p.supply, p.supply / p.resistanceLocked() * float32(p.duty) / station.PWMMaxPercentage
}

func (p *Plant) checkOvercurrent() {
	p.mu.Lock()
	tripped := p.enabled && p.duty > 0 &&
		p.power.OvercurrentLimit > 0 &&
		p.supply/p.resistanceLocked() > p.power.OvercurrentLimit
	fn := p.onOvercurrent
	p.mu.Unlock()

	if tripped && fn != nil {
		fn()
	}
}

// thermocouple returns the raw reading for the current tip temperature.
func (p *Plant) thermocouple() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.probe {
		return p.sensor.Disconnect
	}
	rise := p.temperature - p.cfg.Ambient
	if p.cfg.NoiseLevel > 0 {
		t := float32(p.elapsed.Seconds())
		rise += (math32.Sin(t*37) + math32.Cos(t*53)) * p.cfg.NoiseLevel * 0.5 * p.cal.Slope
	}

	raw := p.inverse(rise)
	hi := float32(p.sensor.Disconnect - 1)
	switch {
	case raw > hi:
		raw = hi
	case raw < -32768:
		raw = -32768
	}
	return int16(math32.Round(raw))
}

// inverse solves the calibration for the raw reading.
func (p *Plant) inverse(rise float32) float32 {
	c := p.cal
	if c.Quadratic == 0 {
		if c.Slope == 0 {
			return 0
		}
		return (rise - c.Offset) / c.Slope
	}
	d := c.Slope*c.Slope - 4*c.Quadratic*(c.Offset-rise)
	if d < 0 {
		d = 0
	}
	return (-c.Slope + math32.Sqrt(d)) / (2 * c.Quadratic)
}

// local returns the raw internal temperature sensor reading.
func (p *Plant) local() int16 {
	if p.sensor.LocalLSB <= 0 {
		return 0
	}
	return int16(p.cfg.Ambient/p.sensor.LocalLSB) << 2
}

// contract sets the supply voltage after a PD contract.
func (p *Plant) contract(c pd.PDO) {
	p.mu.Lock()
	p.supply = c.Voltage()
	p.mu.Unlock()

	p.checkOvercurrent()
}

type plantPWM Plant

var _ hal.PWM = (*plantPWM)(nil)

func (w *plantPWM) Set(duty uint32) {
	p := (*Plant)(w)
	p.mu.Lock()
	p.duty = min(duty, station.PWMMaxPercentage)
	p.mu.Unlock()
}

func (w *plantPWM) Enable() {
	p := (*Plant)(w)
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()

	p.checkOvercurrent()
}

func (w *plantPWM) Disable() {
	p := (*Plant)(w)
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

type adcFunc func() uint16

func (f adcFunc) Get() uint16 { return f() }

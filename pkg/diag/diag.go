package diag

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/mathx"
	"github.com/itohio/gotip/pkg/station"
)

// slowDivider is the number of samples per toggle of a slow blink.
const slowDivider = 4

// Line formats the telemetry line: temperature and delivered power, both
// times 100, in two 5-digit fields.
func Line(s station.State) string {
	current := s.CurrentControl.Is - s.Power.CurrentOffset
	return fmt.Sprintf("%5d%5d\n", field(s.TemperatureControl.Is*100), field(current*s.Power.Voltage*100))
}

func field(v float32) uint16 {
	return uint16(mathx.Clamp(v, 0, math.MaxUint16))
}

// Level selects the indicator LED from the setpoint's position in the
// allowed range.
func Level(s station.State, leds int) int {
	if leds < 1 {
		return 0
	}
	span := s.Temperatures.Max - s.Temperatures.Min
	if span <= 0 {
		return 0
	}
	r := mathx.Ratio(s.TemperatureControl.Set-s.Temperatures.Min, span)
	return min(int(r*float32(leds)), leds-1)
}

// Diagnostics is the diagnostics thread. After power is up it renders the
// LEDs and writes one telemetry line per temperature sample.
type Diagnostics struct {
	leds  []hal.LED
	out   io.Writer
	st    *station.Station
	power *event.Gate
	temp  *event.Listener

	machine Machine
	ticks   int
	blink   bool
}

// New creates the diagnostics thread. out may be nil.
func New(leds []hal.LED, out io.Writer, st *station.Station, src *event.Source, power *event.Gate) *Diagnostics {
	return &Diagnostics{
		leds:  leds,
		out:   out,
		st:    st,
		power: power,
		temp:  src.Listen(event.Temp),
	}
}

// Run executes the diagnostics loop until ctx is done.
func (d *Diagnostics) Run(ctx context.Context) error {
	if err := d.power.Wait(ctx); err != nil {
		return err
	}

	for {
		if _, err := d.temp.Wait(ctx, event.Temp); err != nil {
			return err
		}
		d.Update(d.st.Snapshot())
	}
}

// Update renders one sample.
func (d *Diagnostics) Update(s station.State) {
	p := d.machine.Step(s.Connected, s.TemperatureControl.Is, s.TemperatureControl.Set)
	d.render(Level(s, len(d.leds)), p)

	if d.out == nil {
		return
	}
	if _, err := io.WriteString(d.out, Line(s)); err != nil {
		log.Printf("Failed to write telemetry: %v", err)
	}
}

// State returns the LED state machine's state.
func (d *Diagnostics) State() State {
	return d.machine.State()
}

func (d *Diagnostics) render(level int, p Pattern) {
	switch p {
	case BlinkSlow:
		d.ticks++
		if d.ticks >= slowDivider {
			d.ticks = 0
			d.blink = !d.blink
		}
	case Blink:
		d.blink = !d.blink
	}

	for i, led := range d.leds {
		on := false
		if i == level {
			switch p {
			case On:
				on = true
			case Blink, BlinkSlow:
				on = d.blink
			}
		}
		led.Set(on)
	}
}

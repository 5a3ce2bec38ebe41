// Package core assembles the station threads around a shared state and
// event source and runs them together.
package core

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/diag"
	"github.com/itohio/gotip/pkg/display"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/heater"
	"github.com/itohio/gotip/pkg/pd"
	"github.com/itohio/gotip/pkg/sensor"
	"github.com/itohio/gotip/pkg/station"
	"github.com/itohio/gotip/pkg/tool"
	"github.com/itohio/gotip/pkg/ui"
)

// detectSamples is the number of reads averaged to identify the tool.
const detectSamples = 16

// Hardware binds the station to its peripherals. Optional parts may be nil.
type Hardware struct {
	Thermocouple sensor.Thermocouple
	Sink         pd.Sink
	PDAlert      <-chan struct{} // optional
	PWM          hal.PWM
	Sense        hal.PowerSense
	Detect       hal.ADC // optional tool identification divider

	Up, Down hal.Input // optional, both or none
	Stand    hal.Input // optional
	LEDs     []hal.LED
	Serial   io.Writer     // optional telemetry output
	Panel    display.Panel // optional
}

// Station is an assembled soldering station.
type Station struct {
	State  *station.Station
	Events *event.Source
	Power  *event.Gate
	Guard  *heater.Guard

	Negotiator  *pd.Negotiator
	Sampler     *sensor.Sampler
	Heater      *heater.Heater
	Diagnostics *diag.Diagnostics
	UI          *ui.UI
	Display     *display.Display
}

// New wires the threads. The over-current interrupt must be routed to
// Guard.Trip by the caller.
func New(hw Hardware, cfg *config.Config) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Thermocouple == nil || hw.Sink == nil || hw.PWM == nil || hw.Sense == nil {
		return nil, fmt.Errorf("%w: thermocouple, sink, pwm and sense are required", config.ErrInvalid)
	}

	profile, err := selectTool(hw.Detect, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to select tool: %w", err)
	}
	state := station.Default(cfg)
	if profile != nil {
		state.UseTool(*profile)
		log.Printf("Tool %s selected", profile.Name)
	}

	s := &Station{
		State:  station.New(state),
		Events: event.NewSource(),
		Power:  event.NewGate(),
		Guard:  heater.NewGuard(hw.PWM),
	}

	s.Negotiator = pd.NewNegotiator(hw.Sink, hw.PDAlert, s.State, s.Events, s.Power, profile, cfg)
	s.Sampler = sensor.NewSampler(hw.Thermocouple, s.State, s.Events, s.Power, sensor.NewConverter(&cfg.Sensor, profile), cfg)
	s.Heater = heater.New(hw.PWM, hw.Sense, s.Guard, s.State, s.Events, s.Power, cfg)
	s.Diagnostics = diag.New(hw.LEDs, hw.Serial, s.State, s.Events, s.Power)
	if hw.Up != nil && hw.Down != nil {
		s.UI = ui.New(hw.Up, hw.Down, hw.Stand, s.State, cfg)
	}
	if hw.Panel != nil {
		s.Display = display.New(hw.Panel, s.State, s.Events, s.Power)
	}
	return s, nil
}

// selectTool returns the configured tool, or the one identified by the
// detect divider when none is configured. Without either it returns nil.
func selectTool(detect hal.ADC, cfg *config.Config) (*tool.Profile, error) {
	lib := tool.NewLibrary(cfg)
	switch {
	case cfg.Tool != "":
		p, err := lib.Find(cfg.Tool)
		if err != nil {
			return nil, err
		}
		return &p, nil
	case detect != nil:
		p, err := lib.Detect(hal.ReadRatio(detect, detectSamples))
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, nil
}

// Run runs every thread until ctx is done or one of them fails.
func (s *Station) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Negotiator.Run(ctx) })
	g.Go(func() error { return s.Sampler.Run(ctx) })
	g.Go(func() error { return s.Heater.Run(ctx) })
	g.Go(func() error { return s.Diagnostics.Run(ctx) })
	if s.UI != nil {
		g.Go(func() error { return s.UI.Run(ctx) })
	}
	if s.Display != nil {
		g.Go(func() error { return s.Display.Run(ctx) })
	}

	log.Printf("Station started")
	return g.Wait()
}

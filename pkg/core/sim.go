package core

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/pd"
	"github.com/itohio/gotip/pkg/sensor"
	"github.com/itohio/gotip/pkg/sim"
)

// senseSamples is the number of ADC reads averaged per power sense.
const senseSamples = 4

// Simulated is a station bound to a simulated plant.
type Simulated struct {
	*Station
	Plant *sim.Plant
}

// NewSimulated wires a station to a new simulated plant. Telemetry lines go
// to out, which may be nil.
func NewSimulated(cfg *config.Config, out io.Writer) (*Simulated, error) {
	plant := sim.New(cfg)
	alert := event.NewNotifier()
	plant.OnAlert(alert.Notify)

	hw := Hardware{
		Thermocouple: sensor.NewADS1118(plant.SPI()),
		Sink:         pd.NewSTUSB4500(plant.I2C()),
		PDAlert:      alert.C(),
		PWM:          plant.PWM(),
		Sense:        hal.NewAnalogSense(plant.VoltageADC(), plant.CurrentADC(), &cfg.Power, senseSamples),
		Serial:       out,
	}
	if cfg.Sim.ToolRatio >= 0 {
		hw.Detect = plant.DetectADC()
	}

	st, err := New(hw, cfg)
	if err != nil {
		return nil, err
	}
	plant.OnOvercurrent(st.Guard.Trip)

	return &Simulated{Station: st, Plant: plant}, nil
}

// Run runs the plant and the station until ctx is done.
func (s *Simulated) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Plant.Run(ctx) })
	g.Go(func() error { return s.Station.Run(ctx) })
	return g.Wait()
}

package sensor

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/station"
)

// Thermocouple is the split-phase ADC the sampler drives.
type Thermocouple interface {
	StartThermocouple() error
	StartLocal() error
	Read() (int16, error)
}

var _ Thermocouple = (*ADS1118)(nil)

// Sampler is the temperature sampling thread. After power is up it
// alternates with the heater: sample, broadcast TEMP, measure the cold
// junction, wait for PWM, start the next conversion.
type Sampler struct {
	adc      Thermocouple
	st       *station.Station
	src      *event.Source
	power    *event.Gate
	pwm      *event.Listener
	conv     Converter
	debounce *Debouncer

	period    time.Duration
	readDelay time.Duration
	deadTime  time.Duration
}

// NewSampler creates the sampling thread. The PWM listener is registered
// here so no burst completion is missed before Run starts.
func NewSampler(adc Thermocouple, st *station.Station, src *event.Source, power *event.Gate, conv Converter, cfg *config.Config) *Sampler {
	return &Sampler{
		adc:       adc,
		st:        st,
		src:       src,
		power:     power,
		pwm:       src.Listen(event.PWM),
		conv:      conv,
		debounce:  NewDebouncer(cfg.DebounceCount()),
		period:    cfg.Control.LoopPeriod,
		readDelay: cfg.Sensor.ReadDelay,
		deadTime:  cfg.Sensor.DeadTime,
	}
}

// Run executes the sampling loop until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.power.Wait(ctx); err != nil {
		return err
	}

	if err := s.adc.StartThermocouple(); err != nil {
		log.Printf("Failed to start thermocouple conversion: %v", err)
	}
	if err := event.Sleep(ctx, s.readDelay); err != nil {
		return err
	}

	for {
		raw, err := s.adc.Read()
		if err != nil {
			log.Printf("Failed to read thermocouple: %v", err)
			raw = s.conv.Disconnect
		}
		s.update(raw)
		s.src.Broadcast(event.Temp)

		if err := event.Sleep(ctx, s.period/2); err != nil {
			return err
		}
		if err := s.measureLocal(ctx); err != nil {
			return err
		}

		if _, err := s.pwm.Wait(ctx, event.PWM); err != nil {
			return err
		}
		if err := event.Sleep(ctx, s.deadTime); err != nil {
			return err
		}

		if err := s.adc.StartThermocouple(); err != nil {
			log.Printf("Failed to start thermocouple conversion: %v", err)
		}
		if err := event.Sleep(ctx, s.readDelay); err != nil {
			return err
		}
	}
}

// update applies a thermocouple reading to the station.
func (s *Sampler) update(raw int16) {
	connected := s.debounce.Update(s.conv.Disconnected(raw))
	count := s.debounce.Count()

	var was bool
	s.st.Update(func(st *station.State) {
		was = st.Connected
		st.Connected = connected
		st.Debounce = count
		st.TemperatureControl.Is = s.conv.Temperature(raw, st.Temperatures.Local)
		if !connected {
			st.Power.CurrentOffset = st.Power.Current
		}
	})

	if was != connected {
		if connected {
			log.Printf("Probe connected")
		} else {
			log.Printf("Probe disconnected")
		}
	}
}

func (s *Sampler) measureLocal(ctx context.Context) error {
	if err := s.adc.StartLocal(); err != nil {
		log.Printf("Failed to start local conversion: %v", err)
		return nil
	}
	if err := event.Sleep(ctx, s.readDelay); err != nil {
		return err
	}
	raw, err := s.adc.Read()
	if err != nil {
		log.Printf("Failed to read local temperature: %v", err)
		return nil
	}

	local := s.conv.Local(raw)
	s.st.Update(func(st *station.State) {
		st.Temperatures.Local = local
	})
	return nil
}

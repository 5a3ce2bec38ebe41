package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/pd"
	"github.com/itohio/gotip/pkg/sensor"
	"github.com/itohio/gotip/pkg/sim"
	"github.com/itohio/gotip/pkg/tool"
)

// recorder keeps the sequence of broadcasts.
type recorder struct {
	mu     sync.Mutex
	events []event.Flags
}

func (r *recorder) observe(f event.Flags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, f)
}

func (r *recorder) Events() []event.Flags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Flags(nil), r.events...)
}

func (r *recorder) Count(f event.Flags) int {
	n := 0
	for _, e := range r.Events() {
		if e == f {
			n++
		}
	}
	return n
}

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Control.LoopPeriod = 10 * time.Millisecond
	cfg.Control.InnerIterations = 5
	cfg.Sensor.ConnectDebounce = 30 * time.Millisecond
	cfg.Power.Timeout = 50 * time.Millisecond
	cfg.Power.RetryBackoff = time.Millisecond
	cfg.Sim.AlertLatency = time.Millisecond
	cfg.Sim.TimeStep = time.Millisecond
	// A light tip so the test sees it move.
	cfg.Sim.ThermalMass = 0.2
	return cfg
}

type simStation struct {
	plant *sim.Plant
	st    *Station
	rec   *recorder
	done  chan error
}

func startSim(t *testing.T, cfg *config.Config) (*simStation, context.CancelFunc) {
	t.Helper()

	sm, err := NewSimulated(cfg, nil)
	require.NoError(t, err)

	s := &simStation{plant: sm.Plant, st: sm.Station, rec: &recorder{}, done: make(chan error, 1)}
	sm.Events.Observe(s.rec.observe)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { s.done <- sm.Run(ctx) }()
	t.Cleanup(cancel)
	return s, cancel
}

func TestStation_Choreography(t *testing.T) {
	cfg := simConfig()
	s, cancel := startSim(t, cfg)

	require.Eventually(t, func() bool { return s.rec.Count(event.PWM) >= 30 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	events := s.rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, event.Power, events[0], "nothing happens before power")

	// Samples and bursts strictly alternate, starting with a sample.
	var last event.Flags
	for i, e := range events[1:] {
		if e != event.Temp && e != event.PWM {
			continue
		}
		if last == 0 {
			assert.Equal(t, event.Temp, e, "first event after power")
		} else {
			assert.NotEqual(t, last, e, "event %d repeats %s", i+1, e)
		}
		last = e
	}

	snap := s.st.State.Snapshot()
	assert.True(t, snap.Connected)
	assert.InDelta(t, 20, snap.Power.VoltageNegotiated, 1e-3)
	assert.Greater(t, s.plant.Temperature(), cfg.Sim.Ambient+1)
	assert.Greater(t, s.plant.Energy(), float32(0))
}

func TestStation_DisconnectStopsHeating(t *testing.T) {
	cfg := simConfig()
	s, _ := startSim(t, cfg)

	require.Eventually(t, func() bool {
		snap := s.st.State.Snapshot()
		return snap.Connected && snap.Power.PWM > 0
	}, 5*time.Second, time.Millisecond)

	s.plant.SetProbe(false)
	require.Eventually(t, func() bool { return !s.st.State.Snapshot().Connected }, time.Second, time.Millisecond)

	// Give the heater a full cycle to act on the disconnect.
	n := s.rec.Count(event.PWM)
	require.Eventually(t, func() bool { return s.rec.Count(event.PWM) >= n+2 }, time.Second, time.Millisecond)

	snap := s.st.State.Snapshot()
	assert.Zero(t, snap.Power.PWM)
	assert.Zero(t, snap.CurrentControl.Set)
	assert.Zero(t, snap.TemperatureControl.IntegratedError)
	assert.Zero(t, snap.CurrentControl.IntegratedError)
	_, on := s.plant.Output()
	assert.False(t, on)
}

func TestStation_OvercurrentTrip(t *testing.T) {
	cfg := simConfig()
	s, _ := startSim(t, cfg)

	require.Eventually(t, func() bool { return s.st.State.Snapshot().Power.PWM > 0 }, 5*time.Second, time.Millisecond)

	s.plant.Short(true)
	require.Eventually(t, func() bool { return s.rec.Count(event.Alert) > 0 }, time.Second, time.Millisecond)
	s.plant.Short(false)

	assert.GreaterOrEqual(t, s.st.State.Snapshot().Faults, uint32(1))
	assert.GreaterOrEqual(t, s.st.Guard.Trips(), uint32(1))

	// Heating resumes once the short is gone.
	require.Eventually(t, func() bool {
		_, on := s.plant.Output()
		return on
	}, time.Second, time.Millisecond)
}

func TestStation_SourceChangeRenegotiates(t *testing.T) {
	cfg := simConfig()
	s, _ := startSim(t, cfg)

	require.Eventually(t, func() bool { return s.rec.Count(event.Power) == 1 }, 5*time.Second, time.Millisecond)
	assert.InDelta(t, 20, s.st.State.Snapshot().Power.VoltageNegotiated, 1e-3)

	s.plant.SetSource(pd.FixedPDO(5, 3), pd.FixedPDO(9, 3))

	require.Eventually(t, func() bool { return s.rec.Count(event.Power) == 2 }, time.Second, time.Millisecond)
	snap := s.st.State.Snapshot()
	assert.InDelta(t, 9, snap.Power.VoltageNegotiated, 1e-3)
	assert.InDelta(t, 3, snap.Power.CurrentNegotiated, 1e-3)
	assert.InDelta(t, 9, s.plant.Supply(), 1e-3)
}

func TestStation_DetectsTool(t *testing.T) {
	cfg := simConfig()
	cfg.Sim.ToolRatio = 0.02 // T210 has no divider
	s, _ := startSim(t, cfg)

	snap := s.st.State.Snapshot()
	assert.Equal(t, "T210", snap.Tool)
	assert.InDelta(t, 2, snap.Power.Resistance, 1e-6)
	assert.InDelta(t, 0.04, snap.TemperatureControl.P, 1e-6)

	// The lower resistance caps the duty ratio below the 3.3 Ohm default.
	require.Eventually(t, func() bool { return s.st.State.Snapshot().Power.PWM > 0 }, 5*time.Second, time.Millisecond)
	assert.Less(t, s.st.State.Snapshot().Power.PWMMax, float32(3000))
}

func TestNew_ToolSelection(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		ratio float32
		want  string
		err   error
	}{
		{name: "no divider", ratio: -1, want: ""},
		{name: "detected", ratio: 0.5, want: "T245"},
		{name: "configured wins", tool: "T245", ratio: 0, want: "T245"},
		{name: "unknown ratio", ratio: 0.8, err: tool.ErrUnknownTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simConfig()
			cfg.Tool = tt.tool
			cfg.Sim.ToolRatio = tt.ratio

			sm, err := NewSimulated(cfg, nil)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sm.State.Snapshot().Tool)
		})
	}
}

func TestStation_GracefulShutdown(t *testing.T) {
	cfg := simConfig()
	s, cancel := startSim(t, cfg)

	require.Eventually(t, func() bool { return s.rec.Count(event.PWM) > 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-s.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("station did not stop")
	}
	_, on := s.plant.Output()
	assert.False(t, on, "heater must be off after shutdown")
}

func TestNew_Validation(t *testing.T) {
	cfg := config.Default()
	_, err := New(Hardware{}, cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg.Tool = "T999"
	plant := sim.New(config.Default())
	_, err = New(Hardware{
		Thermocouple: sensor.NewADS1118(plant.SPI()),
		Sink:         pd.NewSTUSB4500(plant.I2C()),
		PWM:          plant.PWM(),
		Sense:        hal.NewAnalogSense(plant.VoltageADC(), plant.CurrentADC(), &cfg.Power, 1),
	}, cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

package station

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/tool"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	s := Default(cfg)

	assert.False(t, s.Connected)
	assert.False(t, s.Negotiated(), "no limits before negotiation")
	assert.Empty(t, s.Tool)
	assert.Equal(t, cfg.Temperatures.Set, s.TemperatureControl.Set)
	assert.Equal(t, cfg.Control.Temperature.P, s.TemperatureControl.P)
	assert.Equal(t, cfg.Control.Current.I, s.CurrentControl.I)
	assert.Equal(t, cfg.Power.Resistance, s.Power.Resistance)
	assert.Equal(t, cfg.Power.SafetyMargin, s.Power.SafetyMargin)
	assert.Zero(t, s.Power.PWMMax, "heating stays off")
}

func TestDefault_ToolOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Tool = "T210"
	tc, ok := cfg.FindTool("T210")
	require.True(t, ok)

	s := Default(cfg)
	assert.Equal(t, "T210", s.Tool)
	assert.Equal(t, tc.Resistance, s.Power.Resistance)
	assert.Equal(t, tc.Gains.P, s.TemperatureControl.P)
	assert.Equal(t, tc.Gains.I, s.TemperatureControl.I)
}

func TestState_UseTool(t *testing.T) {
	cfg := config.Default()
	s := Default(cfg)

	s.UseTool(tool.Profile{Name: "C245", Resistance: 2.5, Gains: config.GainsConfig{P: 0.1, I: 0.3}})
	assert.Equal(t, "C245", s.Tool)
	assert.Equal(t, float32(2.5), s.Power.Resistance)
	assert.Equal(t, float32(0.1), s.TemperatureControl.P)
	assert.Equal(t, float32(0.3), s.TemperatureControl.I)

	// Unset fields keep the configured values.
	s = Default(cfg)
	s.UseTool(tool.Profile{Name: "bare"})
	assert.Equal(t, cfg.Power.Resistance, s.Power.Resistance)
	assert.Equal(t, cfg.Control.Temperature.P, s.TemperatureControl.P)
}

func TestSetTemperature(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float32
	}{
		{name: "inside", in: 320, want: 320},
		{name: "above max", in: 500, want: 450},
		{name: "below min", in: 20, want: 150},
		{name: "at min", in: 150, want: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(Default(config.Default()))
			assert.Equal(t, tt.want, st.SetTemperature(tt.in))
			assert.Equal(t, tt.want, st.Snapshot().TemperatureControl.Set)
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	st := New(Default(config.Default()))

	snap := st.Snapshot()
	snap.TemperatureControl.Set = 999
	snap.Connected = true

	got := st.Snapshot()
	assert.Equal(t, float32(300), got.TemperatureControl.Set)
	assert.False(t, got.Connected)
}

func TestUpdateAndSleep(t *testing.T) {
	st := New(Default(config.Default()))

	st.Update(func(s *State) {
		s.Connected = true
		s.Faults++
	})
	st.SetSleep(true)

	got := st.Snapshot()
	assert.True(t, got.Connected)
	assert.True(t, got.Sleep)
	assert.Equal(t, uint32(1), got.Faults)
}

func TestLoopReset(t *testing.T) {
	l := Loop{Set: 300, P: 1, Error: 5, ErrorLast: 4, IntegratedError: 12}
	l.Reset()

	assert.Zero(t, l.Error)
	assert.Zero(t, l.ErrorLast)
	assert.Zero(t, l.IntegratedError)
	assert.Equal(t, float32(300), l.Set, "targets and gains are kept")
	assert.Equal(t, float32(1), l.P)
}

func TestPowerRatio(t *testing.T) {
	tests := []struct {
		name  string
		power Power
		want  float32
	}{
		{name: "not negotiated", power: Power{Voltage: 20, Current: 2}, want: 0},
		{name: "half", power: Power{Voltage: 20, Current: 1.5, CurrentOffset: 0.25, PowerNegotiated: 50}, want: 0.5},
		{name: "clamped", power: Power{Voltage: 20, Current: 5, PowerNegotiated: 60}, want: 1},
		{name: "offset above current", power: Power{Voltage: 20, Current: 0.1, CurrentOffset: 0.2, PowerNegotiated: 60}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Power: tt.power}
			assert.InDelta(t, tt.want, s.PowerRatio(), 1e-6)
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(Default(config.Default()))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				st.Update(func(s *State) { s.Faults++ })
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				st.SetTemperature(float32(200 + i))
				_ = st.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(800), st.Snapshot().Faults)
}

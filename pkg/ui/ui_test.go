package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/station"
)

type fakeInput struct {
	mu sync.Mutex
	on bool
}

var _ hal.Input = (*fakeInput)(nil)

func (f *fakeInput) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

func (f *fakeInput) Set(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = on
}

func TestButton_Debounce(t *testing.T) {
	in := &fakeInput{}
	b := NewButton(in, 3)

	in.Set(true)
	assert.False(t, b.Poll())
	assert.False(t, b.Poll())
	assert.True(t, b.Poll(), "press accepted on the third identical poll")
	assert.False(t, b.Poll(), "held button counts once")
	assert.True(t, b.Pressed())

	// A glitch shorter than the threshold is ignored.
	in.Set(false)
	assert.False(t, b.Poll())
	in.Set(true)
	assert.False(t, b.Poll())
	assert.True(t, b.Pressed())

	in.Set(false)
	for i := 0; i < 3; i++ {
		assert.False(t, b.Poll())
	}
	assert.False(t, b.Pressed())
}

func TestStand(t *testing.T) {
	t0 := time.Unix(1000, 0)

	tests := []struct {
		name  string
		stand Stand
		steps []bool
		dt    time.Duration
		want  []StandState
	}{
		{
			name:  "sleeps after timeout",
			stand: Stand{AutoSleep: 2 * time.Second},
			steps: []bool{true, true, true, true, false},
			dt:    time.Second,
			want:  []StandState{InStand, InStand, Sleeping, Sleeping, Active},
		},
		{
			name:  "immediate sleep",
			stand: Stand{},
			steps: []bool{false, true, false},
			dt:    time.Second,
			want:  []StandState{Active, Sleeping, Active},
		},
		{
			name:  "no sleep",
			stand: Stand{NoSleep: true},
			steps: []bool{true, true, true},
			dt:    time.Hour,
			want:  []StandState{InStand, InStand, InStand},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stand
			for i, in := range tt.steps {
				s.Update(in, t0.Add(time.Duration(i)*tt.dt))
				assert.Equal(t, tt.want[i], s.State, "step %d", i)
			}
		})
	}
}

type uiRig struct {
	up, down, stand *fakeInput
	st              *station.Station
	ui              *UI
}

func newUIRig(cfg *config.Config) *uiRig {
	r := &uiRig{
		up:    &fakeInput{},
		down:  &fakeInput{},
		stand: &fakeInput{},
		st:    station.New(station.Default(cfg)),
	}
	r.ui = New(r.up, r.down, r.stand, r.st, cfg)
	return r
}

func uiConfig() *config.Config {
	cfg := config.Default()
	cfg.UI.Debounce = 2
	cfg.UI.AutoSleep = time.Minute
	return cfg
}

func (r *uiRig) press(in *fakeInput, now time.Time) {
	in.Set(true)
	r.ui.Poll(now)
	r.ui.Poll(now)
	in.Set(false)
	r.ui.Poll(now)
	r.ui.Poll(now)
}

func TestUI_Buttons(t *testing.T) {
	r := newUIRig(uiConfig())
	now := time.Unix(0, 0)

	r.press(r.up, now)
	assert.Equal(t, float32(310), r.st.Snapshot().TemperatureControl.Set)

	r.press(r.down, now)
	r.press(r.down, now)
	assert.Equal(t, float32(290), r.st.Snapshot().TemperatureControl.Set)
	assert.Equal(t, float32(290), r.ui.Setpoint())
}

func TestUI_ButtonsClampToBounds(t *testing.T) {
	r := newUIRig(uiConfig())
	now := time.Unix(0, 0)

	for i := 0; i < 30; i++ {
		r.press(r.up, now)
	}
	assert.Equal(t, float32(450), r.st.Snapshot().TemperatureControl.Set)

	for i := 0; i < 50; i++ {
		r.press(r.down, now)
	}
	assert.Equal(t, float32(150), r.st.Snapshot().TemperatureControl.Set)
}

func TestUI_StandAndSleep(t *testing.T) {
	r := newUIRig(uiConfig())
	t0 := time.Unix(0, 0)

	r.stand.Set(true)
	r.ui.Poll(t0)
	r.ui.Poll(t0)
	assert.Equal(t, InStand, r.ui.State())
	s := r.st.Snapshot()
	assert.Equal(t, float32(150), s.TemperatureControl.Set)
	assert.False(t, s.Sleep)

	r.ui.Poll(t0.Add(time.Minute))
	assert.Equal(t, Sleeping, r.ui.State())
	assert.True(t, r.st.Snapshot().Sleep)

	r.stand.Set(false)
	r.ui.Poll(t0.Add(2 * time.Minute))
	r.ui.Poll(t0.Add(2 * time.Minute))
	assert.Equal(t, Active, r.ui.State())
	s = r.st.Snapshot()
	assert.False(t, s.Sleep)
	assert.Equal(t, float32(300), s.TemperatureControl.Set)
}

func TestUI_StandKeepsLowerSetpoint(t *testing.T) {
	cfg := uiConfig()
	cfg.Temperatures.Set = 200
	cfg.Temperatures.Stand = 250
	r := newUIRig(cfg)

	r.stand.Set(true)
	r.ui.Poll(time.Unix(0, 0))
	r.ui.Poll(time.Unix(0, 0))
	assert.Equal(t, InStand, r.ui.State())
	assert.Equal(t, float32(200), r.st.Snapshot().TemperatureControl.Set)
}

func TestUI_NoStandSwitch(t *testing.T) {
	cfg := uiConfig()
	up := &fakeInput{}
	st := station.New(station.Default(cfg))
	u := New(up, &fakeInput{}, nil, st, cfg)

	for i := 0; i < 10; i++ {
		u.Poll(time.Unix(int64(i)*3600, 0))
	}
	assert.Equal(t, Active, u.State())
	assert.False(t, st.Snapshot().Sleep)
}

func TestUI_GracefulShutdown(t *testing.T) {
	cfg := uiConfig()
	cfg.UI.PollPeriod = time.Millisecond
	r := newUIRig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.ui.Run(ctx) }()

	r.up.Set(true)
	require.Eventually(t, func() bool {
		return r.st.Snapshot().TemperatureControl.Set == 310
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

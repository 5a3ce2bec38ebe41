package ui

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/mathx"
	"github.com/itohio/gotip/pkg/station"
)

// UI is the user input thread. Buttons move the operational setpoint; the
// stand switch lowers it to the stand temperature and eventually sleeps.
type UI struct {
	up, down *Button
	stand    *Button
	st       *station.Station

	standState  Stand
	operational float32
	standTemp   float32
	step        float32
	period      time.Duration
}

// New creates the UI thread. stand may be nil when the station has no stand
// switch.
func New(up, down, stand hal.Input, st *station.Station, cfg *config.Config) *UI {
	u := &UI{
		up:          NewButton(up, cfg.UI.Debounce),
		down:        NewButton(down, cfg.UI.Debounce),
		st:          st,
		operational: st.Snapshot().TemperatureControl.Set,
		standTemp:   cfg.Temperatures.Stand,
		step:        cfg.UI.Step,
		period:      cfg.UI.PollPeriod,
		standState: Stand{
			AutoSleep: cfg.UI.AutoSleep,
			NoSleep:   cfg.UI.NoSleep,
		},
	}
	if stand != nil {
		u.stand = NewButton(stand, cfg.UI.Debounce)
	}
	return u
}

// Run polls the inputs until ctx is done.
func (u *UI) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			u.Poll(now)
		}
	}
}

// Poll samples the inputs once.
func (u *UI) Poll(now time.Time) {
	delta := float32(0)
	if u.up.Poll() {
		delta += u.step
	}
	if u.down.Poll() {
		delta -= u.step
	}

	inStand := false
	if u.stand != nil {
		u.stand.Poll()
		inStand = u.stand.Pressed()
	}
	changed := u.standState.Update(inStand, now)

	if delta == 0 && !changed {
		return
	}
	if delta != 0 {
		s := u.st.Snapshot()
		u.operational = mathx.Clamp(u.operational+delta, s.Temperatures.Min, s.Temperatures.Max)
	}
	if changed {
		log.Printf("Tool %s", u.standState.State)
	}
	u.apply()
}

// Setpoint returns the operational setpoint.
func (u *UI) Setpoint() float32 {
	return u.operational
}

// State returns the stand state.
func (u *UI) State() StandState {
	return u.standState.State
}

func (u *UI) apply() {
	switch u.standState.State {
	case Active:
		u.st.SetSleep(false)
		u.st.SetTemperature(u.operational)
	case InStand:
		u.st.SetSleep(false)
		u.st.SetTemperature(min(u.standTemp, u.operational))
	case Sleeping:
		u.st.SetSleep(true)
	}
}

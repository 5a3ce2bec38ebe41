package main

import (
	"fmt"

	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gotip/pkg/telemetry"
)

func setAdjuster(state *appState, adjust telemetry.Setpoint) {
	state.mu.Lock()
	state.adjust = adjust
	state.mu.Unlock()
}

// currentSetpoint returns the station's setpoint in °C, 0 when the source
// does not report one.
func currentSetpoint(state *appState) float64 {
	state.mu.Lock()
	adjust := state.adjust
	state.mu.Unlock()

	if adjust == nil {
		return 0
	}
	return float64(adjust.Temperature())
}

// handleSetpointStep moves the setpoint by one UI step in direction dir.
// The station clamps the result to its temperature bounds.
func handleSetpointStep(state *appState, dir int) {
	state.mu.Lock()
	adjust := state.adjust
	state.mu.Unlock()

	if adjust == nil {
		return
	}

	step := state.cfg.UI.Step * float32(dir)
	got := adjust.SetTemperature(adjust.Temperature() + step)
	fmt.Printf("Setpoint: %.0f°C\n", got)
	updateSetpointLabel(state)
}

// handleProbeToggle plugs or unplugs the simulated tip.
func handleProbeToggle(state *appState) {
	mock, ok := state.source.(*telemetry.Mock)
	if !ok {
		return
	}

	state.probeOut = !state.probeOut
	mock.SetProbe(!state.probeOut)
	updateProbeButton(state)
}

// setControlsEnabled enables the setpoint buttons. The probe button is
// only available with the simulated station.
func setControlsEnabled(state *appState, enabled bool) {
	for _, btn := range []*widget.Button{state.downBtn, state.upBtn} {
		if enabled {
			btn.Enable()
		} else {
			btn.Disable()
		}
	}

	if _, ok := state.source.(*telemetry.Mock); ok && enabled {
		state.probeBtn.Enable()
	} else {
		state.probeBtn.Disable()
	}
	updateProbeButton(state)
}

// updateSetpointLabel shows the current setpoint, "---" when unknown.
func updateSetpointLabel(state *appState) {
	if sp := currentSetpoint(state); sp > 0 {
		state.setLabel.SetText(fmt.Sprintf("SET %3.0f°C", sp))
		return
	}
	state.setLabel.SetText("SET ---")
}

// updateProbeButton highlights the probe button while the tip is plugged in.
func updateProbeButton(state *appState) {
	if state.probeBtn.Disabled() || state.probeOut {
		state.probeBtn.Importance = widget.MediumImportance
	} else {
		state.probeBtn.Importance = widget.HighImportance
	}
	state.probeBtn.Refresh()
}

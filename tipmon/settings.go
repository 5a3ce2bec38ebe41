package main

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gotip/pkg/telemetry"
)

// showSettingsDialog displays a settings dialog with tabs for the monitor
// and simulator configuration.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createTemperaturesTab(state),
		createMeasurementTab(state),
		createSimulatorTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := telemetry.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			changed := false
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				changed = state.cfg.Serial.Port != selectedPort
				state.cfg.Serial.Port = selectedPort
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 && baud != state.cfg.Serial.BaudRate {
				state.cfg.Serial.BaudRate = baud
				changed = true
			}
			if !saveConfig(state) {
				return
			}

			if changed && !state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createTemperaturesTab creates the setpoint bounds tab.
func createTemperaturesTab(state *appState) *container.TabItem {
	minEntry := floatEntry(state.cfg.Temperatures.Min, "%.0f")
	maxEntry := floatEntry(state.cfg.Temperatures.Max, "%.0f")
	setEntry := floatEntry(state.cfg.Temperatures.Set, "%.0f")
	standEntry := floatEntry(state.cfg.Temperatures.Stand, "%.0f")
	stepEntry := floatEntry(state.cfg.UI.Step, "%.0f")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Minimum (°C)", Widget: minEntry},
			{Text: "Maximum (°C)", Widget: maxEntry},
			{Text: "Default Setpoint (°C)", Widget: setEntry},
			{Text: "Stand (°C)", Widget: standEntry},
			{Text: "Step (°C)", Widget: stepEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Temperatures
			parseFloat32(minEntry.Text, &next.Min)
			parseFloat32(maxEntry.Text, &next.Max)
			parseFloat32(setEntry.Text, &next.Set)
			parseFloat32(standEntry.Text, &next.Stand)

			prev := state.cfg.Temperatures
			state.cfg.Temperatures = next
			if err := state.cfg.Validate(); err != nil {
				state.cfg.Temperatures = prev
				dialog.ShowError(err, state.window)
				return
			}
			parseFloat32(stepEntry.Text, &state.cfg.UI.Step)
			saveConfig(state)
		},
	}

	return container.NewTabItem("Temperatures", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	rateThresholdEntry := widget.NewEntry()
	rateThresholdEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Measurement.RateThreshold))

	minPhaseDurationEntry := widget.NewEntry()
	minPhaseDurationEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.MinPhaseDuration))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Measurement.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Heat-up Threshold (°C/s)", Widget: rateThresholdEntry},
			{Text: "Min Phase Duration (s)", Widget: minPhaseDurationEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if rt, err := strconv.ParseFloat(rateThresholdEntry.Text, 64); err == nil {
				state.cfg.Measurement.RateThreshold = rt
			}
			if mpd, err := strconv.ParseFloat(minPhaseDurationEntry.Text, 64); err == nil {
				state.cfg.Measurement.MinPhaseDuration = mpd
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Measurement.AverageSamples = avg
			}
			if !saveConfig(state) {
				return
			}

			// The meter and the converters are rebuilt with the new settings.
			connected := state.source != nil && state.source.IsConnected()
			if connected {
				handleConnect(state)
			}
			resetMeter(state)
			if connected {
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createSimulatorTab creates the simulated plant tab. Changes apply on the
// next connect.
func createSimulatorTab(state *appState) *container.TabItem {
	ambientEntry := floatEntry(state.cfg.Sim.Ambient, "%.1f")
	thermalMassEntry := floatEntry(state.cfg.Sim.ThermalMass, "%.2f")
	lossEntry := floatEntry(state.cfg.Sim.Loss, "%.3f")
	resistanceEntry := floatEntry(state.cfg.Sim.Resistance, "%.2f")
	noiseLevelEntry := floatEntry(state.cfg.Sim.NoiseLevel, "%.1f")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ambient (°C)", Widget: ambientEntry},
			{Text: "Thermal Mass (J/°C)", Widget: thermalMassEntry},
			{Text: "Loss (W/°C)", Widget: lossEntry},
			{Text: "Heater Resistance (Ω)", Widget: resistanceEntry},
			{Text: "Noise Level (LSB)", Widget: noiseLevelEntry},
		},
		OnSubmit: func() {
			parseFloat32(ambientEntry.Text, &state.cfg.Sim.Ambient)
			parseFloat32(thermalMassEntry.Text, &state.cfg.Sim.ThermalMass)
			parseFloat32(lossEntry.Text, &state.cfg.Sim.Loss)
			parseFloat32(resistanceEntry.Text, &state.cfg.Sim.Resistance)
			parseFloat32(noiseLevelEntry.Text, &state.cfg.Sim.NoiseLevel)
			saveConfig(state)
		},
	}

	return container.NewTabItem("Simulator", form)
}

func floatEntry(v float32, format string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(fmt.Sprintf(format, v))
	return e
}

// parseFloat32 stores the parsed value in dst, leaving it unchanged on error.
func parseFloat32(s string, dst *float32) {
	if v, err := strconv.ParseFloat(s, 32); err == nil {
		*dst = float32(v)
	}
}

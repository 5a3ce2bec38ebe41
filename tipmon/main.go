package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/meter"
	"github.com/itohio/gotip/pkg/sample"
	"github.com/itohio/gotip/pkg/scope"
	"github.com/itohio/gotip/pkg/telemetry"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use the simulated station instead of a serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	application := app.NewWithID("com.itohio.gotip")

	window := application.NewWindow("Soldering Station Monitor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
	}
	resetMeter(state)

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(cfg)

	window.SetContent(container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.scopeWidget,
	))
	window.SetOnClosed(func() {
		closeMeasurementChain(state.chain)
	})
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for
// graceful shutdown.
type measurementChain struct {
	source         telemetry.Source
	samplesStream  <-chan sample.Sample
	meterGoroutine chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	source      telemetry.Source
	meter       *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	downBtn     *widget.Button
	upBtn       *widget.Button
	probeBtn    *widget.Button
	setLabel    *widget.Label
	useMock     bool
	probeOut    bool              // Simulated probe unplugged
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Read from the meter goroutine (protected by mu)
	mu     sync.Mutex
	adjust telemetry.Setpoint // nil when the source has no setpoint control

	throttle throttle
}

// createToolbar creates the toolbar with Connect and Settings on the left and
// the setpoint controls on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.downBtn = widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
		handleSetpointStep(state, -1)
	})
	state.upBtn = widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
		handleSetpointStep(state, 1)
	})
	state.probeBtn = widget.NewButtonWithIcon("", theme.MediaRecordIcon(), func() {
		handleProbeToggle(state)
	})
	state.setLabel = widget.NewLabel("SET ---")
	setControlsEnabled(state, false)

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		container.NewHBox(state.probeBtn, state.downBtn, state.setLabel, state.upBtn),
		nil,
	)
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Closing the source closes its records channel, which drains the
	// converters and ends the meter goroutine.
	if chain.source != nil {
		if err := chain.source.Close(); err != nil {
			log.Printf("Error closing source: %v", err)
		}
	}

	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.source != nil && state.source.IsConnected() {
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.source = nil
		state.probeOut = false
		setAdjuster(state, nil)
		setControlsEnabled(state, false)
		updateSetpointLabel(state)
		if state.useMock {
			fmt.Println("Disconnected from simulated station")
		} else {
			fmt.Println("Disconnected from serial port")
		}
		return
	}

	var source telemetry.Source
	if state.useMock {
		source = telemetry.NewMock(state.cfg)
		fmt.Println("Using simulated station")
	} else {
		source = telemetry.NewSerial(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, telemetry.DefaultBufferSize)
	}

	if err := source.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated station: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.source = source
	if state.useMock {
		fmt.Println("Connected to simulated station")
	} else {
		fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
	}

	adjust, _ := source.(telemetry.Setpoint)
	setAdjuster(state, adjust)
	setControlsEnabled(state, adjust != nil)
	updateSetpointLabel(state)

	// Reset meter shutdown flag for new chain
	state.meter.ResetShutdown()

	// Base converter always, averaging converter when enabled.
	samplesStream := sample.NewConverter(500)(source.Records())
	if state.cfg.Measurement.AverageSamples > 0 {
		samplesStream = sample.NewAveragingConverter(state.cfg.Measurement.AverageSamples, 500)(samplesStream)
	}

	meterDone := make(chan struct{})
	go func() {
		defer close(meterDone)
		state.meter.ProcessSamples(samplesStream)
	}()

	state.chain = &measurementChain{
		source:         source,
		samplesStream:  samplesStream,
		meterGoroutine: meterDone,
	}
}

// resetMeter replaces the meter and routes its updates to the scope widget.
func resetMeter(state *appState) {
	state.meter = meter.New(state.cfg)
	state.meter.OnUpdate(func(samples []sample.Sample, derivatives []float64, phases []meter.Phase) {
		if !state.throttle.ready() {
			return
		}
		setpoint := currentSetpoint(state)
		fyne.Do(func() {
			state.scopeWidget.UpdateData(samples, phases, setpoint)
		})
	})
}

// reconnect restarts the measurement chain if it is running.
func reconnect(state *appState) {
	if state.source == nil || !state.source.IsConnected() {
		return
	}
	handleConnect(state)
	handleConnect(state)
}

// saveConfig writes the configuration and reports failures in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// throttle limits scope refreshes to about 60 per second.
type throttle struct {
	mu   sync.Mutex
	last time.Time
}

const updateInterval = 16 * time.Millisecond

func (t *throttle) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.last) < updateInterval {
		return false
	}
	t.last = now
	return true
}

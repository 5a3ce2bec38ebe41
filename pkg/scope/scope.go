// Package scope provides a fyne widget plotting a station's temperature and
// power history.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/meter"
	"github.com/itohio/gotip/pkg/sample"
)

// Axis is a value range.
type Axis struct {
	Min, Max float64
}

// Span returns the axis length, never zero.
func (a Axis) Span() float64 {
	if s := a.Max - a.Min; s != 0 {
		return s
	}
	return 1
}

// Ratio maps v to 0..1 along the axis.
func (a Axis) Ratio(v float64) float64 {
	return (v - a.Min) / a.Span()
}

func (a *Axis) include(v float64) {
	a.Min = min(a.Min, v)
	a.Max = max(a.Max, v)
}

// padded returns the axis with a 10% margin on both ends.
func (a Axis) padded() Axis {
	margin := a.Span() * 0.1
	return Axis{Min: a.Min - margin, Max: a.Max + margin}
}

// ScopeWidget is a custom Fyne widget that displays temperature and power
// history in oscilloscope style.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu       sync.RWMutex
	samples  []sample.Sample
	phases   []meter.Phase
	setpoint float64 // °C, 0 = unknown

	// Display buffer (reused for downsampling)
	displaySamples []sample.Sample

	// Auto-scaling
	temperature Axis
	power       Axis
	xMin, xMax  time.Time

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:              cfg,
		displaySamples:   make([]sample.Sample, 0, 1000),
		maxDisplayPoints: 1000, // Limit points for efficient rendering
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	s.Refresh()
	return s
}

// UpdateData updates the widget with new measurement data. setpoint is the
// station's target temperature, 0 if unknown. Call it on the fyne thread.
func (s *ScopeWidget) UpdateData(samples []sample.Sample, phases []meter.Phase, setpoint float64) {
	s.mu.Lock()
	s.displaySamples = sample.Downsample(s.displaySamples, samples, s.maxDisplayPoints)
	s.samples = samples
	s.phases = phases
	s.setpoint = setpoint
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// updateAutoScale calculates axis ranges from current data. Must be called
// with mu held.
func (s *ScopeWidget) updateAutoScale() {
	window := time.Duration(s.cfg.Measurement.WindowSeconds * float64(time.Second))
	if len(s.displaySamples) == 0 {
		s.temperature = Axis{Min: 0, Max: float64(s.cfg.Temperatures.Max)}
		s.power = Axis{Min: 0, Max: 1}
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(window)
		return
	}

	// Ambient and zero stay in view.
	ambient := float64(s.cfg.Sim.Ambient)
	temperature := Axis{Min: ambient, Max: ambient}
	power := Axis{}
	for _, d := range s.displaySamples {
		temperature.include(d.Temperature)
		power.include(d.Power)
	}
	if s.setpoint > 0 {
		temperature.include(s.setpoint)
	}
	s.temperature = temperature.padded()
	s.power = power.padded()

	s.xMin = s.displaySamples[0].Timestamp
	s.xMax = s.displaySamples[len(s.displaySamples)-1].Timestamp
	if s.xMax.Sub(s.xMin) < window {
		s.xMax = s.xMin.Add(window)
	}
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}

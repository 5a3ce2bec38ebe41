package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/gotip/pkg/meter"
	"github.com/itohio/gotip/pkg/sample"
)

var (
	gridColor        = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor       = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	temperatureColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	powerColor       = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	setpointColor    = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	phaseColor       = color.RGBA{R: 0, G: 100, B: 200, A: 255} // Dark blue
)

// plot is the drawing area inside the margins.
type plot struct {
	x, y, width, height float32
	xMin, xMax          time.Time
}

func (p plot) timeX(t time.Time) float32 {
	return p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.width
}

func (p plot) valueY(a Axis, v float64) float32 {
	return p.y + p.height - float32(a.Ratio(v))*p.height
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the widget data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	phases := r.scope.phases
	full := r.scope.samples
	setpoint := r.scope.setpoint
	temperature := r.scope.temperature
	power := r.scope.power
	xMin := r.scope.xMin
	xMax := r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	const (
		marginLeft   = 60
		marginRight  = 60
		marginTop    = 20
		marginBottom = 40
	)
	p := plot{
		x:      marginLeft,
		y:      marginTop,
		width:  size.Width - marginLeft - marginRight,
		height: size.Height - marginTop - marginBottom,
		xMin:   xMin,
		xMax:   xMax,
	}

	r.drawGrid(p, temperature, power)
	if setpoint > 0 {
		r.drawSetpoint(p, temperature, setpoint)
	}
	r.drawTrace(p, samples, temperature, temperatureColor, 1.5, func(s sample.Sample) float64 { return s.Temperature })
	r.drawTrace(p, samples, power, powerColor, 2.5, func(s sample.Sample) float64 { return s.Power })
	r.drawPhases(p, phases, full, temperature)

	if len(samples) > 0 {
		last := samples[len(samples)-1]
		r.drawText(fmt.Sprintf("%.1f°C  %.1fW", last.Temperature, last.Power), labelColor, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))
	}
}

// drawGrid draws the grid with temperature labels on the left and power
// labels on the right.
func (r *scopeRenderer) drawGrid(p plot, temperature, power Axis) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.height/float32(numHLines)
		r.drawLine(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y), gridColor, 1)

		frac := float64(i) / float64(numHLines)
		t := temperature.Max - frac*temperature.Span()
		w := power.Max - frac*power.Span()
		r.drawText(formatTemperature(t), temperatureColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
		r.drawText(formatPower(w), powerColor, 10, fyne.TextAlignLeading, fyne.NewPos(p.x+p.width+5, y-6))
	}

	numVLines := 10
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.width/float32(numVLines)
		r.drawLine(fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.height), gridColor, 1)

		offset := span * time.Duration(i) / time.Duration(numVLines)
		r.drawText(formatTime(offset), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.height+5))
	}
}

// drawSetpoint draws the target temperature as a horizontal line.
func (r *scopeRenderer) drawSetpoint(p plot, temperature Axis, setpoint float64) {
	y := p.valueY(temperature, setpoint)
	r.drawLine(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y), setpointColor, 1)
	r.drawText("SET "+formatTemperature(setpoint), setpointColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x+p.width-5, y-14))
}

// drawTrace draws one value of the samples as connected line segments.
func (r *scopeRenderer) drawTrace(p plot, samples []sample.Sample, a Axis, c color.Color, width float32, value func(sample.Sample) float64) {
	if len(samples) < 2 {
		return
	}

	prev := fyne.NewPos(p.timeX(samples[0].Timestamp), p.valueY(a, value(samples[0])))
	for _, s := range samples[1:] {
		pos := fyne.NewPos(p.timeX(s.Timestamp), p.valueY(a, value(s)))
		r.drawLine(prev, pos, c, width)
		prev = pos
	}
}

// drawPhases marks heat-up phases with start and end lines and a label with
// the rise and the estimated heat capacity.
func (r *scopeRenderer) drawPhases(p plot, phases []meter.Phase, samples []sample.Sample, temperature Axis) {
	for _, ph := range phases {
		if ph.StartIndex < 0 || ph.EndIndex >= len(samples) || ph.StartIndex > ph.EndIndex {
			continue
		}

		xStart := p.timeX(ph.StartTime)
		xEnd := p.timeX(ph.EndTime)
		r.drawLine(fyne.NewPos(xStart, p.y), fyne.NewPos(xStart, p.y+p.height), phaseColor, 1)
		r.drawLine(fyne.NewPos(xEnd, p.y), fyne.NewPos(xEnd, p.y+p.height), phaseColor, 1)

		y := p.valueY(temperature, samples[ph.EndIndex].Temperature) - 15
		r.drawText(formatPhase(ph), temperatureColor, 12, fyne.TextAlignCenter, fyne.NewPos((xStart+xEnd)/2-30, y))
	}
}

func (r *scopeRenderer) drawLine(from, to fyne.Position, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) drawText(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatTemperature(t float64) string {
	return fmt.Sprintf("%.0f°C", t)
}

func formatPower(w float64) string {
	return fmt.Sprintf("%.1fW", w)
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatPhase(ph meter.Phase) string {
	if c := ph.HeatCapacity(); c > 0 {
		return fmt.Sprintf("+%.0f°C %.1fJ/°C", ph.Rise, c)
	}
	return fmt.Sprintf("+%.0f°C", ph.Rise)
}

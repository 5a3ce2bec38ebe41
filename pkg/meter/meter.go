// Package meter analyses a station's temperature history on the host: a
// sliding window of samples, the heating rate and detected heat-up phases.
package meter

import (
	"sync"
	"time"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/sample"
)

var _ Analyzer = (*Meter)(nil)

// Phase is a detected heat-up phase: a run of samples where the tip heats
// faster than the rate threshold.
type Phase struct {
	StartIndex int       // Start sample index in buffer
	EndIndex   int       // End sample index in buffer (updated as the phase continues)
	StartTime  time.Time // Start timestamp
	EndTime    time.Time // End timestamp (updated as the phase continues)
	Rise       float64   // Temperature rise (°C)
	Rate       float64   // Peak heating rate (°C/s)
	Energy     float64   // Energy delivered to the heater (J)
}

// Duration returns the phase duration.
func (p Phase) Duration() time.Duration {
	return p.EndTime.Sub(p.StartTime)
}

// HeatCapacity estimates the tip's heat capacity in J/°C from the phase,
// ignoring losses. It returns 0 for phases that did not heat.
func (p Phase) HeatCapacity() float64 {
	if p.Rise <= 0 {
		return 0
	}
	return p.Energy / p.Rise
}

// Analyzer processes samples, maintains buffers and detects heat-up phases.
type Analyzer interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                                      // Current samples, oldest first
	Derivatives() []float64                                                        // Heating rate per sample pair, n-1 values for n samples
	Phases() []Phase                                                               // Detected phases within the window
	OnUpdate(func(samples []sample.Sample, derivatives []float64, phases []Phase)) // Register callback for updates
}

// Meter implements Analyzer.
//
// derivatives[i] is the heating rate between samples[i] and samples[i+1],
// so n samples always carry n-1 derivatives. Samples leave the buffers by
// age, not by count.
type Meter struct {
	mu          sync.RWMutex
	samples     []sample.Sample
	derivatives []float64
	phases      []Phase
	heating     bool // The last phase is still open

	callbacks []func(samples []sample.Sample, derivatives []float64, phases []Phase)
	cbMu      sync.RWMutex

	windowDuration   time.Duration
	threshold        float64
	minPhaseDuration time.Duration

	// Set when the input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a new Meter instance.
func New(cfg *config.Config) *Meter {
	return &Meter{
		windowDuration:   time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		threshold:        cfg.Measurement.RateThreshold,
		minPhaseDuration: time.Duration(cfg.Measurement.MinPhaseDuration * float64(time.Second)),
	}
}

// ProcessSamples processes samples from the input channel until it closes.
// Afterwards no more callbacks are sent until ResetShutdown.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}

	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a sample to the buffers, updates the heating rate and
// the phases, then notifies the callbacks.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()
	added := m.add(s)
	notify := added && !m.shutdown
	m.mu.Unlock()

	if notify {
		m.notifyCallbacks()
	}
}

// add must be called with mu held. Samples that do not advance in time are
// dropped so derivatives stay paired with samples.
func (m *Meter) add(s sample.Sample) bool {
	var dt float64
	if n := len(m.samples); n > 0 {
		dt = s.Timestamp.Sub(m.samples[n-1].Timestamp).Seconds()
		if dt <= 0 {
			return false
		}
	}

	m.samples = append(m.samples, s)
	if len(m.samples) >= 2 {
		prev := m.samples[len(m.samples)-2]
		m.derivatives = append(m.derivatives, (s.Temperature-prev.Temperature)/dt)
		m.updatePhases(prev, s, dt)
	}

	m.trim(s.Timestamp.Add(-m.windowDuration))
	return true
}

// updatePhases extends, opens or closes the heat-up phase for the newest
// sample pair.
func (m *Meter) updatePhases(prev, curr sample.Sample, dt float64) {
	last := len(m.samples) - 1
	rate := m.derivatives[len(m.derivatives)-1]
	energy := (prev.Power + curr.Power) / 2 * dt

	if rate <= m.threshold {
		if m.heating {
			m.heating = false
			if p := m.phases[len(m.phases)-1]; p.Duration() < m.minPhaseDuration {
				m.phases = m.phases[:len(m.phases)-1]
			}
		}
		return
	}

	if m.heating {
		p := &m.phases[len(m.phases)-1]
		p.EndIndex = last
		p.EndTime = curr.Timestamp
		p.Rise = curr.Temperature - m.samples[p.StartIndex].Temperature
		p.Rate = max(p.Rate, rate)
		p.Energy += energy
		return
	}

	m.heating = true
	m.phases = append(m.phases, Phase{
		StartIndex: last - 1,
		EndIndex:   last,
		StartTime:  prev.Timestamp,
		EndTime:    curr.Timestamp,
		Rise:       curr.Temperature - prev.Temperature,
		Rate:       rate,
		Energy:     energy,
	})
}

// trim removes samples at or before cutoff together with their derivatives
// and shifts phase indices. A phase whose start left the window keeps its
// measured values and is clipped to the window.
func (m *Meter) trim(cutoff time.Time) {
	n := 0
	for n < len(m.samples)-1 && !m.samples[n].Timestamp.After(cutoff) {
		n++
	}
	if n == 0 {
		return
	}

	m.samples = m.samples[n:]
	m.derivatives = m.derivatives[min(n, len(m.derivatives)):]

	phases := m.phases[:0]
	for _, p := range m.phases {
		p.StartIndex -= n
		p.EndIndex -= n
		if p.EndIndex < 0 {
			continue
		}
		if p.StartIndex < 0 {
			p.StartIndex = 0
			p.StartTime = m.samples[0].Timestamp
		}
		phases = append(phases, p)
	}
	if len(phases) == 0 {
		m.heating = false
	}
	m.phases = phases
}

// visible returns the phases long enough to report. Must be called with mu
// held.
func (m *Meter) visible() []Phase {
	result := make([]Phase, 0, len(m.phases))
	for _, p := range m.phases {
		if p.Duration() >= m.minPhaseDuration {
			result = append(result, p)
		}
	}
	return result
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Derivatives returns a copy of the current heating rates.
func (m *Meter) Derivatives() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.derivatives))
	copy(result, m.derivatives)
	return result
}

// Phases returns the detected heat-up phases at least the minimum phase
// duration long.
func (m *Meter) Phases() []Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible()
}

// OnUpdate registers a callback function that will be called when samples are updated.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, derivatives []float64, phases []Phase)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks to be sent again. Call it before starting a
// new measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes all registered callbacks with copies of the
// current data, without holding any locks.
func (m *Meter) notifyCallbacks() {
	m.mu.RLock()
	samples := make([]sample.Sample, len(m.samples))
	copy(samples, m.samples)
	derivatives := make([]float64, len(m.derivatives))
	copy(derivatives, m.derivatives)
	phases := m.visible()
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, derivatives []float64, phases []Phase), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, derivatives, phases)
		}
	}
}

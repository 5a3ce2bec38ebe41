package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/sample"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 10
	cfg.Measurement.RateThreshold = 5
	cfg.Measurement.MinPhaseDuration = 1
	return cfg
}

// heatUp returns 41 samples 100 ms apart: flat at 25 °C for 1 s, heating at
// 10 °C/s with 40 W for 2 s, then flat at 45 °C.
func heatUp(start time.Time) []sample.Sample {
	samples := make([]sample.Sample, 0, 41)
	for i := 0; i <= 40; i++ {
		s := sample.Sample{
			Timestamp:   start.Add(time.Duration(i) * 100 * time.Millisecond),
			Temperature: 25,
		}
		switch {
		case i > 30:
			s.Temperature = 45
		case i > 10:
			s.Temperature = 25 + float64(i-10)
		}
		if i >= 10 && i <= 30 {
			s.Power = 40
		}
		samples = append(samples, s)
	}
	return samples
}

func TestNew(t *testing.T) {
	m := New(testConfig())

	assert.NotNil(t, m)
	assert.Empty(t, m.Samples())
	assert.Empty(t, m.Derivatives())
	assert.Empty(t, m.Phases())
	assert.Equal(t, 10*time.Second, m.windowDuration)
	assert.Equal(t, time.Second, m.minPhaseDuration)
}

func TestProcessSample_Basic(t *testing.T) {
	m := New(testConfig())

	s := sample.Sample{Timestamp: time.Now(), Temperature: 25, Power: 1}
	m.processSample(s)

	samples := m.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, s, samples[0])
	assert.Empty(t, m.Derivatives(), "need at least 2 samples for derivatives")
}

func TestProcessSample_HeatingRate(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	m.processSample(sample.Sample{Timestamp: now, Temperature: 100})
	m.processSample(sample.Sample{Timestamp: now.Add(100 * time.Millisecond), Temperature: 101.5})
	m.processSample(sample.Sample{Timestamp: now.Add(200 * time.Millisecond), Temperature: 101})

	derivatives := m.Derivatives()
	require.Len(t, derivatives, 2)
	assert.InDelta(t, 15, derivatives[0], 1e-6)
	assert.InDelta(t, -5, derivatives[1], 1e-6)
}

func TestProcessSample_DropsStaleSamples(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	m.processSample(sample.Sample{Timestamp: now, Temperature: 100})
	m.processSample(sample.Sample{Timestamp: now, Temperature: 200})
	m.processSample(sample.Sample{Timestamp: now.Add(-time.Second), Temperature: 300})

	assert.Len(t, m.Samples(), 1)
	assert.Empty(t, m.Derivatives())
}

func TestProcessSample_WindowRemoval(t *testing.T) {
	cfg := testConfig()
	cfg.Measurement.WindowSeconds = 1
	m := New(cfg)

	now := time.Now()
	for i := range 30 {
		m.processSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * 100 * time.Millisecond),
			Temperature: float64(i),
		})
	}

	samples := m.Samples()
	last := samples[len(samples)-1].Timestamp
	assert.Equal(t, now.Add(2900*time.Millisecond), last)
	assert.True(t, samples[0].Timestamp.After(last.Add(-time.Second)), "oldest sample within the window")
	assert.Len(t, samples, 10)
	assert.Len(t, m.Derivatives(), len(samples)-1)
}

func TestProcessSample_PhaseDetection(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	for _, s := range heatUp(now) {
		m.processSample(s)
	}

	phases := m.Phases()
	require.Len(t, phases, 1)

	p := phases[0]
	assert.Equal(t, 10, p.StartIndex)
	assert.Equal(t, 30, p.EndIndex)
	assert.Equal(t, now.Add(time.Second), p.StartTime)
	assert.Equal(t, now.Add(3*time.Second), p.EndTime)
	assert.Equal(t, 2*time.Second, p.Duration())
	assert.InDelta(t, 20, p.Rise, 1e-9)
	assert.InDelta(t, 10, p.Rate, 1e-6)
	assert.InDelta(t, 80, p.Energy, 1e-6)
	assert.InDelta(t, 4, p.HeatCapacity(), 1e-6)
}

func TestProcessSample_PhaseBelowThreshold(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	for i := range 40 {
		// 2 °C/s, below the 5 °C/s threshold.
		m.processSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * 100 * time.Millisecond),
			Temperature: 25 + 0.2*float64(i),
			Power:       10,
		})
	}

	assert.Empty(t, m.Phases())
}

func TestProcessSample_ShortPhaseFiltered(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	temps := []float64{25, 25, 30, 35, 40, 40, 40}
	for i, temp := range temps {
		m.processSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * 100 * time.Millisecond),
			Temperature: temp,
		})
		if i == 3 {
			assert.Empty(t, m.Phases(), "open phase shorter than the minimum is hidden")
			assert.Len(t, m.phases, 1)
		}
	}

	assert.Empty(t, m.Phases())
	assert.Empty(t, m.phases, "closed short phase is dropped")
}

func TestProcessSample_MultiplePhases(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	for _, s := range heatUp(now) {
		m.processSample(s)
	}
	for _, s := range heatUp(now.Add(5 * time.Second)) {
		s.Temperature += 20
		m.processSample(s)
	}

	phases := m.Phases()
	require.Len(t, phases, 2)
	assert.Less(t, phases[0].EndIndex, phases[1].StartIndex)
	assert.Equal(t, now.Add(6*time.Second), phases[1].StartTime)
	for _, p := range phases {
		assert.InDelta(t, 20, p.Rise, 1e-9)
	}
}

func TestProcessSample_PhaseClippedByWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Measurement.WindowSeconds = 1.5
	m := New(cfg)

	now := time.Now()
	for _, s := range heatUp(now)[:31] {
		m.processSample(s)
	}

	phases := m.Phases()
	require.Len(t, phases, 1)
	assert.Equal(t, 0, phases[0].StartIndex)
	assert.Equal(t, len(m.Samples())-1, phases[0].EndIndex)
	assert.Equal(t, m.Samples()[0].Timestamp, phases[0].StartTime)
}

func TestPhases_IndicesValid(t *testing.T) {
	cfg := testConfig()
	cfg.Measurement.WindowSeconds = 3
	m := New(cfg)

	now := time.Now()
	for k := range 3 {
		for _, s := range heatUp(now.Add(time.Duration(k) * 5 * time.Second)) {
			m.processSample(s)

			samples := m.Samples()
			for _, p := range m.Phases() {
				assert.GreaterOrEqual(t, p.StartIndex, 0)
				assert.Less(t, p.EndIndex, len(samples))
				assert.LessOrEqual(t, p.StartIndex, p.EndIndex)
			}
		}
	}
}

func TestOnUpdate(t *testing.T) {
	m := New(testConfig())

	var calls int
	var lastSamples []sample.Sample
	var lastPhases []Phase
	m.OnUpdate(func(samples []sample.Sample, derivatives []float64, phases []Phase) {
		calls++
		lastSamples = samples
		lastPhases = phases
		assert.Len(t, derivatives, max(len(samples)-1, 0))
	})

	for _, s := range heatUp(time.Now()) {
		m.processSample(s)
	}

	assert.Equal(t, 41, calls)
	assert.Len(t, lastSamples, 41)
	assert.Len(t, lastPhases, 1)

	// Callbacks get copies.
	lastSamples[0].Temperature = -1
	assert.Equal(t, 25.0, m.Samples()[0].Temperature)
}

func TestSamples_ThreadSafe(t *testing.T) {
	m := New(testConfig())

	now := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			m.processSample(sample.Sample{Timestamp: now.Add(time.Duration(i) * time.Millisecond), Temperature: float64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_ = m.Samples()
			_ = m.Derivatives()
			_ = m.Phases()
		}
	}()
	wg.Wait()

	assert.Len(t, m.Samples(), 200)
}

func TestProcessSamples_Channel(t *testing.T) {
	m := New(testConfig())

	input := make(chan sample.Sample, 41)
	for _, s := range heatUp(time.Now()) {
		input <- s
	}
	close(input)

	m.ProcessSamples(input)

	assert.Len(t, m.Samples(), 41)
	assert.Len(t, m.Phases(), 1)
}

package meter

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/gotip/pkg/sample"
)

// TestMeter_GracefulShutdown_NoCallbacksAfterClose tests that the meter stops
// sending callbacks after the input channel is closed, and resumes after
// ResetShutdown.
func TestMeter_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	m := New(testConfig())

	var calls atomic.Int32
	m.OnUpdate(func(samples []sample.Sample, derivatives []float64, phases []Phase) {
		calls.Add(1)
	})

	input := make(chan sample.Sample, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.ProcessSamples(input)
	}()

	now := time.Now()
	for i := range 3 {
		input <- sample.Sample{Timestamp: now.Add(time.Duration(i) * time.Second), Temperature: float64(i)}
	}
	close(input)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ProcessSamples did not return after the channel closed")
	}
	assert.Equal(t, int32(3), calls.Load())

	// Still buffered, but no callback.
	m.processSample(sample.Sample{Timestamp: now.Add(3 * time.Second)})
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, m.Samples(), 4)

	m.ResetShutdown()
	m.processSample(sample.Sample{Timestamp: now.Add(4 * time.Second)})
	assert.Equal(t, int32(4), calls.Load())
}

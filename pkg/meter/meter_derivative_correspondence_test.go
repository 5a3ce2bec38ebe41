package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/sample"
)

// TestDerivativeCorrespondence verifies that derivatives correspond exactly
// to sample pairs: derivative[i] = (sample[i+1] - sample[i]) / dt, also
// after samples leave the window.
func TestDerivativeCorrespondence(t *testing.T) {
	cfg := testConfig()
	cfg.Measurement.WindowSeconds = 0.5
	m := New(cfg)

	now := time.Now()
	for i := range 20 {
		// Uneven steps and a temperature curve so every pair differs.
		ts := now.Add(time.Duration(i*i) * 10 * time.Millisecond)
		m.processSample(sample.Sample{Timestamp: ts, Temperature: float64(i * i * i)})

		samples := m.Samples()
		derivatives := m.Derivatives()
		require.Equal(t, max(len(samples)-1, 0), len(derivatives), "n-1 derivatives for n samples")

		for k, d := range derivatives {
			dt := samples[k+1].Timestamp.Sub(samples[k].Timestamp).Seconds()
			want := (samples[k+1].Temperature - samples[k].Temperature) / dt
			assert.InDelta(t, want, d, 1e-9, "derivative %d after sample %d", k, i)
		}
	}
}

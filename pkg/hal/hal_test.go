package hal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"github.com/itohio/gotip/pkg/config"
)

type fixedADC uint16

func (a fixedADC) Get() uint16 { return uint16(a) }

type stepADC struct{ values []uint16 }

func (a *stepADC) Get() uint16 {
	v := a.values[0]
	a.values = append(a.values[1:], v)
	return v
}

func TestAdcToVoltage(t *testing.T) {
	tests := []struct {
		name string
		adc  uint16
		vref float32
		want float32
	}{
		{name: "zero", adc: 0, vref: 3.3, want: 0},
		{name: "full scale", adc: 65535, vref: 3.3, want: 3.3},
		{name: "half scale", adc: 32768, vref: 3.3, want: 1.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, adcToVoltage(tt.adc, tt.vref), 1e-3)
		})
	}
}

func TestVoltageToADC_RoundTrip(t *testing.T) {
	for _, v := range []float32{0.1, 1, 1.65, 3.2} {
		raw := VoltageToADC(v, 3.3)
		assert.InDelta(t, v, adcToVoltage(raw, 3.3), 1e-4)
	}
	assert.Equal(t, uint16(0), VoltageToADC(-1, 3.3))
	assert.Equal(t, uint16(65535), VoltageToADC(5, 3.3))
}

func TestReadRatio(t *testing.T) {
	assert.InDelta(t, 0.5, ReadRatio(fixedADC(VoltageToADC(1.65, 3.3)), 4), 1e-3)
	assert.InDelta(t, 0, ReadRatio(fixedADC(0), 0), 1e-6)

	// Reads are averaged.
	steps := &stepADC{values: []uint16{0, 65535}}
	assert.InDelta(t, 0.5, ReadRatio(steps, 2), 1e-3)
}

func TestAnalogSense_Read(t *testing.T) {
	cfg := config.Default().Power

	// 20 V through 1:11 divider, 2 A through 0.2 V/A amplifier.
	v := fixedADC(VoltageToADC(20.0/11, cfg.ADCReference))
	i := fixedADC(VoltageToADC(0.4, cfg.ADCReference))
	sense := NewAnalogSense(v, i, &cfg, 1)

	voltage, current, err := sense.Read()
	require.NoError(t, err)
	assert.InDelta(t, 20, voltage, 0.01)
	assert.InDelta(t, 2, current, 0.001)
}

func TestAnalogSense_Averages(t *testing.T) {
	cfg := config.Default().Power

	lo := VoltageToADC(0.2, cfg.ADCReference)
	hi := VoltageToADC(0.6, cfg.ADCReference)
	sense := NewAnalogSense(fixedADC(0), &stepADC{values: []uint16{lo, hi}}, &cfg, 4)

	_, current, err := sense.Read()
	require.NoError(t, err)
	assert.InDelta(t, 2, current, 0.001)
}

type slowSPI struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

var _ drivers.SPI = (*slowSPI)(nil)

func (s *slowSPI) Tx(w, r []byte) error {
	n := s.active.Add(1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	s.active.Add(-1)
	return nil
}

func (s *slowSPI) Transfer(b byte) (byte, error) {
	return b, s.Tx([]byte{b}, nil)
}

func TestLockedSPI_Serialises(t *testing.T) {
	raw := &slowSPI{}
	mu := &sync.Mutex{}
	a := NewLockedSPI(raw, mu)
	b := NewLockedSPI(raw, mu)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = a.Tx([]byte{1, 2}, make([]byte, 2))
			} else {
				_, _ = b.Transfer(3)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), raw.maxSeen.Load())
}

type recordingI2C struct {
	mu    sync.Mutex
	addrs []uint16
}

func (r *recordingI2C) Tx(addr uint16, w, rd []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = append(r.addrs, addr)
	return nil
}

func TestLockedI2C_Forwards(t *testing.T) {
	raw := &recordingI2C{}
	bus := NewLockedI2C(raw, nil)

	require.NoError(t, bus.Tx(0x28, []byte{0x0B}, make([]byte, 1)))
	assert.Equal(t, []uint16{0x28}, raw.addrs)
}

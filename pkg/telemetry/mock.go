package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/core"
)

// Mock runs a complete station against the simulated plant in-process and
// reads its telemetry lines.
type Mock struct {
	cfg *config.Config

	records   chan Record
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	station *core.Simulated
	lines   *LineWriter
}

// NewMock creates a simulated source. A nil cfg uses the defaults.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	records := make(chan Record, DefaultBufferSize)
	return &Mock{
		cfg:     cfg,
		records: records,
		lines:   NewLineWriter(records),
	}
}

// Connect starts the simulated station.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	st, err := core.NewSimulated(m.cfg, m.lines)
	if err != nil {
		return fmt.Errorf("failed to create simulated station: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.station = st
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true

	go m.run(ctx)

	return nil
}

func (m *Mock) run(ctx context.Context) {
	defer close(m.done)
	if err := m.station.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Simulated station stopped: %v", err)
	}
}

// Close stops the simulated station and closes the records channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	<-m.done
	m.connected = false
	close(m.records)

	return nil
}

// Records returns the channel for reading records.
func (m *Mock) Records() <-chan Record {
	return m.records
}

// IsConnected returns whether the simulated station is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SetTemperature changes the simulated station's setpoint and returns the
// clamped value. It does nothing before Connect.
func (m *Mock) SetTemperature(t float32) float32 {
	st := m.simulated()
	if st == nil {
		return 0
	}
	return st.State.SetTemperature(t)
}

// Temperature returns the simulated station's setpoint.
func (m *Mock) Temperature() float32 {
	st := m.simulated()
	if st == nil {
		return m.cfg.Temperatures.Set
	}
	s := st.State.Snapshot()
	return s.TemperatureControl.Set
}

// SetProbe plugs or unplugs the simulated tip.
func (m *Mock) SetProbe(connected bool) {
	if st := m.simulated(); st != nil {
		st.Plant.SetProbe(connected)
	}
}

func (m *Mock) simulated() *core.Simulated {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil
	}
	return m.station
}

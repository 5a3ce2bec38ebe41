package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/station"
)

// fakePanel keeps the text shown on each row.
type fakePanel struct {
	mu     sync.Mutex
	rows   [2][]byte
	row    uint8
	prints int
}

var _ Panel = (*fakePanel)(nil)

func (p *fakePanel) ClearDisplay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = [2][]byte{}
}

func (p *fakePanel) SetCursor(col, row uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.row = row
}

func (p *fakePanel) Print(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[p.row] = append([]byte(nil), data...)
	p.prints++
}

func (p *fakePanel) Row(i int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.rows[i])
}

func (p *fakePanel) Prints() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prints
}

func TestLines(t *testing.T) {
	base := station.Default(config.Default())
	base.Power.PowerNegotiated = 60
	base.Power.Voltage = 20

	tests := []struct {
		name  string
		edit  func(s *station.State)
		want0 string
		want1 string
	}{
		{
			name:  "disconnected",
			edit:  func(s *station.State) {},
			want0: "---C SET 300C   ",
			want1: "             0% ",
		},
		{
			name: "heating",
			edit: func(s *station.State) {
				s.Connected = true
				s.TemperatureControl.Is = 212.4
				s.CurrentControl.Is = 1.5
				s.Power.Current = 1.5
			},
			want0: "212C SET 300C   ",
			want1: "#####       50% ",
		},
		{
			name: "sleeping",
			edit: func(s *station.State) {
				s.Connected = true
				s.Sleep = true
				s.TemperatureControl.Is = 80
			},
			want0: " 80C SET 300C   ",
			want1: "SLEEP           ",
		},
		{
			name: "fault",
			edit: func(s *station.State) {
				s.Connected = true
				s.Faults = 2
			},
			want0: "  0C SET 300C   ",
			want1: "          !  0% ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.edit(&s)
			lines := Lines(s)
			assert.Equal(t, tt.want0, lines[0])
			assert.Equal(t, tt.want1, lines[1])
			assert.Len(t, lines[0], Width)
			assert.Len(t, lines[1], Width)
		})
	}
}

func TestDisplay_Run(t *testing.T) {
	cfg := config.Default()
	st := station.New(station.Default(cfg))
	src := event.NewSource()
	gate := event.NewGate()
	panel := &fakePanel{}
	d := New(panel, st, src, gate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return panel.Row(0) == pad("USB-PD ...") }, time.Second, time.Millisecond)

	gate.Open()
	src.Broadcast(event.Temp)
	require.Eventually(t, func() bool { return panel.Row(0) == "---C SET 300C   " }, time.Second, time.Millisecond)

	// Unchanged rows are not redrawn.
	n := panel.Prints()
	src.Broadcast(event.Temp)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, panel.Prints())

	st.SetTemperature(320)
	src.Broadcast(event.Temp)
	require.Eventually(t, func() bool { return panel.Row(0) == "---C SET 320C   " }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

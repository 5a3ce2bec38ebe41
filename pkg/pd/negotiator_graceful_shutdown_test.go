package pd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/station"
)

func TestNegotiator_GracefulShutdown(t *testing.T) {
	cfg := negotiatorConfig()
	cfg.Power.Timeout = time.Hour
	alert := event.NewNotifier()
	// The source never answers, so Run is parked on the alert wait.
	sink := &fakeSink{alert: alert, silent: 1 << 30}
	gate := event.NewGate()
	n := NewNegotiator(sink, alert.C(), station.New(station.Default(cfg)), event.NewSource(), gate, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, gate.IsOpen())
}

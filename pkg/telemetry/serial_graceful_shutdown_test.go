package telemetry

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSerial_GracefulShutdown tests that the records channel closes when
// Close is called while the reader is blocked on the port.
func TestSerial_GracefulShutdown(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerial("pipe", 0, 10)
	require.NoError(t, s.attach(r))

	go io.WriteString(w, "30050 4000\n")

	select {
	case _, ok := <-s.Records():
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("no record received")
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		s.Close()
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return within timeout")
	}

	_, ok := <-s.Records()
	assert.False(t, ok, "Channel should be closed")
}

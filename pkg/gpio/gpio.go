// Package gpio watches a station's over-current alert line from a Linux host.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Alert reports edges on the active-low over-current alert line.
type Alert interface {
	// Events delivers the time of every falling edge. Edges arriving while
	// the channel is full are dropped.
	Events() <-chan time.Time

	// Asserted reports whether the line is currently held low.
	Asserted() (bool, error)

	// Close releases GPIO resources and closes the events channel.
	Close() error
}

// eventBuffer is the number of edges kept for a slow reader.
const eventBuffer = 8

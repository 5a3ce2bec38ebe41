//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

var _ Alert = (*RealAlert)(nil)

// RealAlert watches the alert line using the Linux GPIO character device.
type RealAlert struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu     sync.Mutex
	events chan time.Time
	closed bool
}

// NewRealAlert requests line on chip as a pulled-up input with falling edge
// detection.
func NewRealAlert(chipName string, line int) (*RealAlert, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("gotip"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	a := &RealAlert{
		chip:   chip,
		events: make(chan time.Time, eventBuffer),
	}

	// The alert output is open drain, so the host supplies the pull-up.
	l, err := chip.RequestLine(line,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(a.handle),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request alert line %d: %w", line, err)
	}
	a.line = l

	return a, nil
}

func (a *RealAlert) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.events <- time.Now():
	default:
	}
}

// Events returns the falling edge channel.
func (a *RealAlert) Events() <-chan time.Time {
	return a.events
}

// Asserted reports whether the line reads low.
func (a *RealAlert) Asserted() (bool, error) {
	v, err := a.line.Value()
	if err != nil {
		return false, fmt.Errorf("read alert line: %w", err)
	}
	return v == 0, nil
}

// Close releases the line and the chip.
// The line is reconfigured to a pulled-down input, matching the Pi boot
// default, before it is released.
func (a *RealAlert) Close() error {
	var errs []error

	if a.line != nil {
		if err := a.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure alert line: %w", err))
		}
		if err := a.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close alert line: %w", err))
		}
	}
	if a.chip != nil {
		if err := a.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

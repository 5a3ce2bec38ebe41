package event

import (
	"context"
	"sync/atomic"
	"time"
)

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notifier is an interrupt-safe wake-up. Notify never blocks and never
// takes a lock; notifications that arrive while one is pending collapse.
type Notifier struct {
	ch    chan struct{}
	count uint32
}

// NewNotifier creates a notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify signals the waiter. Safe from interrupt context.
func (n *Notifier) Notify() {
	atomic.AddUint32(&n.count, 1)
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives notifications.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}

// Count returns the total number of notifications.
func (n *Notifier) Count() uint32 {
	return atomic.LoadUint32(&n.count)
}

// Drain discards a pending notification.
func (n *Notifier) Drain() {
	select {
	case <-n.ch:
	default:
	}
}

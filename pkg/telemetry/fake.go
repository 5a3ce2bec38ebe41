package telemetry

import (
	"sync"
	"time"
)

// FakePublisher records published telemetry for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Records contains all records that were published.
	Records []Record

	// States contains all lifecycle states that were published.
	States []string

	// Alerts contains the times of all published alerts.
	Alerts []time.Time

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// Ensure FakePublisher implements Publisher.
var _ Publisher = (*FakePublisher)(nil)

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the record.
func (f *FakePublisher) Publish(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Records = append(f.Records, r)
	return nil
}

// PublishState records the state.
func (f *FakePublisher) PublishState(state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States = append(f.States, state)
	return nil
}

// PublishAlert records the alert time.
func (f *FakePublisher) PublishAlert(at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = append(f.Alerts, at)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Snapshot returns copies of the published records and states.
func (f *FakePublisher) Snapshot() ([]Record, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.Records...), append([]string(nil), f.States...)
}

// AlertCount returns the number of published alerts.
func (f *FakePublisher) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}

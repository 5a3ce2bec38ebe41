package pd

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/station"
	"github.com/itohio/gotip/pkg/tool"
)

// Sink is the PD sink controller used by the negotiator.
type Sink interface {
	SoftReset() error
	Poll() ([]PDO, error)
	Request(position int, pdo PDO) error
}

var _ Sink = (*STUSB4500)(nil)

// Negotiator is the power negotiation thread. It obtains a contract, writes
// the derived limits into the station, opens the power gate and broadcasts
// POWER. Every wait is bounded; failed exchanges are retried until the
// context ends.
type Negotiator struct {
	sink        Sink
	alert       <-chan struct{}
	st          *station.Station
	src         *event.Source
	power       *event.Gate
	profile     *tool.Profile
	renegotiate chan struct{}
	retries     uint32

	timeout    time.Duration
	backoff    time.Duration
	attempts   int
	maxVoltage float32
	iPerWatt   float32
}

// NewNegotiator creates the negotiation thread. alert receives a value when
// the controller raises its alert line; it may be nil, in which case every
// exchange waits the full timeout before polling.
func NewNegotiator(sink Sink, alert <-chan struct{}, st *station.Station, src *event.Source, power *event.Gate, profile *tool.Profile, cfg *config.Config) *Negotiator {
	attempts := cfg.Power.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Negotiator{
		sink:        sink,
		alert:       alert,
		st:          st,
		src:         src,
		power:       power,
		profile:     profile,
		renegotiate: make(chan struct{}, 1),
		timeout:     cfg.Power.Timeout,
		backoff:     cfg.Power.RetryBackoff,
		attempts:    attempts,
		maxVoltage:  cfg.Power.MaxVoltage,
		iPerWatt:    cfg.Control.IPerWatt,
	}
}

// Renegotiate asks the thread to run the procedure again. An alert while
// idle does the same.
func (n *Negotiator) Renegotiate() {
	select {
	case n.renegotiate <- struct{}{}:
	default:
	}
}

// Retries returns the number of failed exchanges so far.
func (n *Negotiator) Retries() uint32 {
	return atomic.LoadUint32(&n.retries)
}

// Run executes the negotiation thread until ctx is done.
func (n *Negotiator) Run(ctx context.Context) error {
	for {
		if err := n.negotiate(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.renegotiate:
			log.Printf("Renegotiating power")
		case <-n.alert:
			// Unsolicited: the source announced new capabilities.
			log.Printf("Source capabilities changed, renegotiating power")
		}
	}
}

func (n *Negotiator) negotiate(ctx context.Context) error {
	for {
		caps, err := n.exchange(ctx)
		if err != nil {
			return err
		}

		pos, pdo, err := SelectHighest(caps, n.maxVoltage)
		if err == nil {
			err = n.sink.Request(pos, pdo)
		}
		if err != nil {
			log.Printf("Failed to request power: %v", err)
			if err := n.fail(ctx); err != nil {
				return err
			}
			continue
		}

		// The source accepts the new request after another soft reset.
		if _, err := n.exchange(ctx); err != nil {
			return err
		}

		n.apply(pos, pdo)
		return nil
	}
}

// exchange soft-resets the source until it sends its capabilities.
func (n *Negotiator) exchange(ctx context.Context) ([]PDO, error) {
	for {
		caps, err := n.try(ctx)
		if err == nil {
			return caps, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if r := atomic.LoadUint32(&n.retries); r == 0 || r%50 == 0 {
			log.Printf("Power negotiation failed, retrying: %v", err)
		}
		if err := n.fail(ctx); err != nil {
			return nil, err
		}
	}
}

func (n *Negotiator) try(ctx context.Context) ([]PDO, error) {
	n.drain()
	if err := n.sink.SoftReset(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	alerted := true
	select {
	case <-n.alert:
	case <-timer.C:
		alerted = false
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for i := 0; i < n.attempts; i++ {
		caps, err := n.sink.Poll()
		if err != nil {
			return nil, err
		}
		if len(caps) > 0 {
			return caps, nil
		}
	}
	if !alerted {
		return nil, ErrTimeout
	}
	return nil, ErrNoSourceCapabilities
}

func (n *Negotiator) drain() {
	select {
	case <-n.alert:
	default:
	}
}

func (n *Negotiator) fail(ctx context.Context) error {
	atomic.AddUint32(&n.retries, 1)
	return event.Sleep(ctx, n.backoff)
}

func (n *Negotiator) apply(pos int, pdo PDO) {
	var l Limits
	n.st.Update(func(s *station.State) {
		l = ComputeLimits(pdo, s.Power.Resistance, s.Power.SafetyMargin, n.iPerWatt, n.profile)
		l.Apply(s)
	})
	log.Printf("Power negotiated: PDO%d %.2fV %.2fA %.1fW, pwm max %.0f", pos, l.Voltage, l.Current, l.Power, l.PWMMax)

	n.power.Open()
	n.src.Broadcast(event.Power)
}

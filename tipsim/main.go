// Command tipsim runs the station core against a simulated tip and prints its
// telemetry lines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/core"
	"github.com/itohio/gotip/pkg/station"
	"github.com/itohio/gotip/pkg/telemetry"
)

// options are the scripted events of a run. Zero durations disable them.
type options struct {
	Duration time.Duration // Total run time
	Setpoint float32       // °C, 0 keeps the configured default
	Unplug   time.Duration // Probe removed after this long
	Short    time.Duration // Heater shorted after this long
}

// summary is the station and plant state at the end of a run.
type summary struct {
	State       station.State
	Temperature float32 // Simulated tip °C
	Energy      float32 // J delivered to the heater
	SoftResets  int
}

func main() {
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	broker := flag.String("broker", "", "MQTT broker to publish telemetry to (overrides config)")
	var opts options
	flag.DurationVar(&opts.Duration, "duration", 0, "Run time (0 = until interrupted)")
	setpoint := flag.Float64("set", 0, "Setpoint in °C (0 = configured default)")
	flag.DurationVar(&opts.Unplug, "unplug", 0, "Remove the probe after this long (0 = never)")
	flag.DurationVar(&opts.Short, "short", 0, "Short the heater after this long (0 = never)")
	flag.Parse()
	opts.Setpoint = float32(*setpoint)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}

	if err := run(cfg, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, opts options) error {
	var pub telemetry.Publisher
	if cfg.MQTT.Broker != "" {
		p, err := telemetry.NewRealPublisher(&cfg.MQTT)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		pub = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := simulate(ctx, cfg, os.Stdout, pub, opts)
	if err != nil {
		return err
	}

	log.Printf("Tip %.1f°C, set %.0f°C, %.1f J delivered", sum.Temperature, sum.State.TemperatureControl.Set, sum.Energy)
	log.Printf("Contract %.1f V %.2f A, %d soft resets, %d faults",
		sum.State.Power.VoltageNegotiated, sum.State.Power.CurrentNegotiated, sum.SoftResets, sum.State.Faults)
	return nil
}

// simulate runs a simulated station until ctx is done or opts.Duration has
// passed. Telemetry lines go to out and, when pub is not nil, to pub.
func simulate(ctx context.Context, cfg *config.Config, out io.Writer, pub telemetry.Publisher, opts options) (summary, error) {
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	var records chan telemetry.Record
	if pub != nil {
		records = make(chan telemetry.Record, telemetry.DefaultBufferSize)
		out = io.MultiWriter(out, telemetry.NewLineWriter(records))
	}

	sm, err := core.NewSimulated(cfg, out)
	if err != nil {
		return summary{}, fmt.Errorf("create station: %w", err)
	}
	if opts.Setpoint > 0 {
		log.Printf("Setpoint %.0f°C", sm.State.SetTemperature(opts.Setpoint))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sm.Run(ctx) })
	if pub != nil {
		g.Go(func() error { return telemetry.Forward(ctx, records, pub) })
	}
	if opts.Unplug > 0 {
		g.Go(func() error {
			return after(ctx, opts.Unplug, func() {
				log.Printf("Removing probe")
				sm.Plant.SetProbe(false)
			})
		})
	}
	if opts.Short > 0 {
		g.Go(func() error {
			return after(ctx, opts.Short, func() {
				log.Printf("Shorting heater")
				sm.Plant.Short(true)
			})
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return summary{}, err
	}

	return summary{
		State:       sm.State.Snapshot(),
		Temperature: sm.Plant.Temperature(),
		Energy:      sm.Plant.Energy(),
		SoftResets:  sm.Plant.SoftResets(),
	}, nil
}

// after runs fn once d has passed, unless ctx is done first.
func after(ctx context.Context, d time.Duration, fn func()) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-t.C:
		fn()
		return nil
	}
}

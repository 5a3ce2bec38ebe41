// Command tipbridge republishes a soldering station's UART telemetry on MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/gpio"
	"github.com/itohio/gotip/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	port := flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	broker := flag.String("broker", "", "MQTT broker override (e.g., tcp://localhost:1883)")
	alertLine := flag.Int("alert-line", -1, "GPIO line of the over-current alert (overrides config when >= 0)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *alertLine >= 0 {
		cfg.Alert.Line = *alertLine
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config) error {
	if cfg.MQTT.Broker == "" {
		return errors.New("no MQTT broker configured")
	}

	publisher, err := telemetry.NewRealPublisher(&cfg.MQTT)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	source := telemetry.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, telemetry.DefaultBufferSize)
	if err := source.Connect(); err != nil {
		return fmt.Errorf("open serial: %w", err)
	}
	defer source.Close()

	var alerts <-chan time.Time
	if cfg.Alert.Line >= 0 {
		alert, err := gpio.NewRealAlert(cfg.Alert.Chip, cfg.Alert.Line)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer alert.Close()
		alerts = alert.Events()
		log.Printf("Watching alert line %s/%d", cfg.Alert.Chip, cfg.Alert.Line)
	}

	log.Printf("Started: port=%s broker=%s prefix=%s", cfg.Serial.Port, cfg.MQTT.Broker, cfg.MQTT.Prefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = bridge(ctx, source.Records(), publisher, alerts)
	if errors.Is(err, context.Canceled) {
		log.Printf("Shutting down")
		return nil
	}
	return err
}

// bridge forwards records and alert edges to pub until records closes or ctx
// is done. A nil alerts channel disables alert reporting.
func bridge(ctx context.Context, records <-chan telemetry.Record, pub telemetry.Publisher, alerts <-chan time.Time) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A closed source ends the alert watcher too.
		defer cancel()
		return telemetry.Forward(ctx, records, pub)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case at, ok := <-alerts:
				if !ok {
					alerts = nil
					continue
				}
				log.Printf("Over-current alert at %s", at.Format(time.TimeOnly))
				if err := pub.PublishAlert(at); err != nil {
					log.Printf("Failed to publish alert: %v", err)
				}
			}
		}
	})

	return g.Wait()
}

// Package sample turns telemetry records into physical samples.
package sample

import (
	"log"
	"time"

	"github.com/itohio/gotip/pkg/telemetry"
)

// scale is the telemetry fixed point factor.
const scale = 100

// Sample represents a telemetry record in physical units.
type Sample struct {
	Timestamp   time.Time
	Temperature float64 // Tip temperature (°C)
	Power       float64 // Delivered heater power (W)
}

// Converter is a function type that converts a Record channel to a Sample channel.
type Converter func(in <-chan telemetry.Record) <-chan Sample

// NewConverter creates a converter function that transforms records to samples.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan telemetry.Record) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for r := range in {
				select {
				case out <- Convert(r):
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// Convert converts a record to physical units.
func Convert(r telemetry.Record) Sample {
	return Sample{
		Timestamp:   r.Timestamp,
		Temperature: float64(r.Temperature) / scale,
		Power:       float64(r.Power) / scale,
	}
}

// Package telemetry reads the station's UART telemetry on a host and
// republishes it.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// fieldWidth is the width of one fixed-width field of a line.
	fieldWidth = 5
	// lineWidth is the length of a line without its terminator.
	lineWidth = 2 * fieldWidth
)

// Record is one telemetry line as sent by the station.
type Record struct {
	Timestamp   time.Time // Arrival time, the station sends none
	Temperature uint16    // Tip temperature in 0.01 °C
	Power       uint16    // Delivered power in 0.01 W
}

// ParseLine parses a telemetry line received at the given time.
// Format: two right-aligned 5 digit fields, "%5d%5d".
// Example: "30050 4000" is 300.50 °C at 40.00 W.
func ParseLine(line string, at time.Time) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) != lineWidth {
		return Record{}, fmt.Errorf("invalid line format: expected %d characters, got %d", lineWidth, len(line))
	}

	temperature, err := parseField(line[:fieldWidth])
	if err != nil {
		return Record{}, fmt.Errorf("invalid temperature: %w", err)
	}
	power, err := parseField(line[fieldWidth:])
	if err != nil {
		return Record{}, fmt.Errorf("invalid power: %w", err)
	}

	return Record{
		Timestamp:   at,
		Temperature: temperature,
		Power:       power,
	}, nil
}

func parseField(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimLeft(s, " "), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

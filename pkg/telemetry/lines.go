package telemetry

import (
	"bytes"
	"log"
	"time"
)

// LineWriter parses the telemetry lines written to it into records.
// Partial lines are kept until their newline arrives. Records are dropped
// while the channel is full. Writes must not be concurrent.
type LineWriter struct {
	records chan<- Record
	line    []byte
}

// NewLineWriter creates a LineWriter sending to records.
func NewLineWriter(records chan<- Record) *LineWriter {
	return &LineWriter{records: records}
}

// Write consumes p. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.line = append(w.line, p...)
	for {
		i := bytes.IndexByte(w.line, '\n')
		if i < 0 {
			break
		}
		line := string(w.line[:i])
		w.line = w.line[i+1:]

		record, err := ParseLine(line, time.Now())
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}

		select {
		case w.records <- record:
		default:
			// Channel full, skip
		}
	}
	return len(p), nil
}

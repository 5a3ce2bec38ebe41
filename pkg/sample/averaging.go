package sample

import "log"

// NewAveragingConverter creates a moving average over the last windowSize
// samples. One averaged sample is produced per input sample, stamped with the
// newest input's timestamp.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			window := make([]Sample, 0, windowSize)
			for s := range in {
				window = append(window, s)
				if len(window) > windowSize {
					window = window[1:]
				}

				select {
				case out <- Average(window):
				default:
					log.Printf("Averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// Average averages samples. The result carries the last sample's timestamp.
func Average(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var sumTemperature, sumPower float64
	for _, s := range samples {
		sumTemperature += s.Temperature
		sumPower += s.Power
	}

	n := float64(len(samples))
	return Sample{
		Timestamp:   samples[len(samples)-1].Timestamp,
		Temperature: sumTemperature / n,
		Power:       sumPower / n,
	}
}

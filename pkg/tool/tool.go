// Package tool holds the handpiece library.
package tool

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/itohio/gotip/pkg/config"
)

// DetectTolerance is the allowed distance between a measured and a
// profile's identification ratio.
const DetectTolerance = 0.05

// ErrUnknownTool is returned when no profile matches.
var ErrUnknownTool = errors.New("tool: unknown tool")

// Calibration converts thermocouple ADC counts to a temperature rise in °C.
type Calibration struct {
	Quadratic float32
	Slope     float32
	Offset    float32
}

// Temperature returns the hot junction temperature above the cold junction.
func (c Calibration) Temperature(raw int16) float32 {
	x := float32(raw)
	return c.Quadratic*x*x + c.Slope*x + c.Offset
}

// Profile describes a tool.
type Profile struct {
	Name        string
	MaxPower    float32
	Resistance  float32
	DetectRatio float32
	Calibration Calibration
	Gains       config.GainsConfig
}

// Library is a set of tool profiles.
type Library []Profile

// NewLibrary builds a library from configuration. Profiles without their own
// calibration inherit the sensor calibration.
func NewLibrary(cfg *config.Config) Library {
	def := Calibration{
		Quadratic: cfg.Sensor.Quadratic,
		Slope:     cfg.Sensor.Slope,
		Offset:    cfg.Sensor.Offset,
	}

	lib := make(Library, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		cal := def
		if t.Slope != 0 {
			cal = Calibration{Quadratic: t.Quadratic, Slope: t.Slope, Offset: t.Offset}
		}
		gains := t.Gains
		if gains == (config.GainsConfig{}) {
			gains = cfg.Control.Temperature
		}
		lib = append(lib, Profile{
			Name:        t.Name,
			MaxPower:    t.MaxPower,
			Resistance:  t.Resistance,
			DetectRatio: t.DetectRatio,
			Calibration: cal,
			Gains:       gains,
		})
	}
	return lib
}

// Find returns the profile with the given name.
func (l Library) Find(name string) (Profile, error) {
	for _, p := range l {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Detect returns the profile whose identification ratio is closest to ratio,
// within DetectTolerance.
func (l Library) Detect(ratio float32) (Profile, error) {
	best := -1
	bestDist := float32(DetectTolerance)
	for i, p := range l {
		d := math32.Abs(p.DetectRatio - ratio)
		if d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Profile{}, fmt.Errorf("%w: ratio %.3f", ErrUnknownTool, ratio)
	}
	return l[best], nil
}

// CurrentLimit returns the highest heater current the tool tolerates at voltage v.
func (p Profile) CurrentLimit(v float32) float32 {
	if p.MaxPower <= 0 || v <= 0 {
		return math32.Inf(1)
	}
	return p.MaxPower / v
}

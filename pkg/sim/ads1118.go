package sim

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

const (
	adsStart = 1 << 15
	adsLocal = 1 << 4
)

// ads1118 answers SPI transfers like the ADC: every transfer clocks out
// the previous conversion and may start a new one.
type ads1118 struct {
	plant *Plant

	mu     sync.Mutex
	result int16
}

var _ drivers.SPI = (*ads1118)(nil)

func (a *ads1118) Tx(w, r []byte) error {
	if len(w) < 2 {
		return errors.New("sim: short ads1118 transfer")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(r) >= 2 {
		r[0] = byte(uint16(a.result) >> 8)
		r[1] = byte(a.result)
	}

	config := uint16(w[0])<<8 | uint16(w[1])
	if config&adsStart == 0 {
		return nil
	}
	if config&adsLocal != 0 {
		a.result = a.plant.local()
	} else {
		a.result = a.plant.thermocouple()
	}
	return nil
}

func (a *ads1118) Transfer(w byte) (byte, error) {
	return 0, nil
}

package sensor

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// ADS1118 config register fields.
const (
	ssPos     = 15
	muxPos    = 12
	pgaPos    = 9
	modePos   = 8
	drPos     = 5
	tsModePos = 4
	pullUpPos = 3
	nopPos    = 1

	muxP2NG   = 6
	pga256mV  = 5
	modeShot  = 1
	dr860SPS  = 7
	nopValid  = 1
	tsLocal   = 1
	ssStart   = 1
	pullUpOn  = 1
	nopIgnore = 0
)

const (
	// ConfigThermocouple starts a single-shot conversion of the thermocouple
	// amplifier on AIN2 at ±0.256 V, 860 SPS.
	ConfigThermocouple uint16 = nopValid<<nopPos |
		pullUpOn<<pullUpPos |
		dr860SPS<<drPos |
		modeShot<<modePos |
		pga256mV<<pgaPos |
		muxP2NG<<muxPos |
		ssStart<<ssPos

	// ConfigLocal starts a single-shot conversion of the internal
	// temperature sensor.
	ConfigLocal uint16 = nopValid<<nopPos |
		pullUpOn<<pullUpPos |
		tsLocal<<tsModePos |
		dr860SPS<<drPos |
		modeShot<<modePos |
		ssStart<<ssPos

	// ConfigRead leaves the configuration untouched and only clocks out
	// the last conversion.
	ConfigRead uint16 = nopIgnore << nopPos
)

// ADS1118 is a 16-bit ADC with an internal temperature sensor on SPI.
// Every transfer writes a config word and reads the previous conversion.
type ADS1118 struct {
	bus drivers.SPI
	tx  [2]byte
	rx  [2]byte
}

// NewADS1118 creates a driver on bus.
func NewADS1118(bus drivers.SPI) *ADS1118 {
	return &ADS1118{bus: bus}
}

func (d *ADS1118) exchange(config uint16) (int16, error) {
	d.tx[0] = byte(config >> 8)
	d.tx[1] = byte(config)
	if err := d.bus.Tx(d.tx[:], d.rx[:]); err != nil {
		return 0, fmt.Errorf("ads1118: failed to exchange: %w", err)
	}
	return int16(uint16(d.rx[0])<<8 | uint16(d.rx[1])), nil
}

// StartThermocouple starts a thermocouple conversion.
func (d *ADS1118) StartThermocouple() error {
	_, err := d.exchange(ConfigThermocouple)
	return err
}

// StartLocal starts a cold junction conversion.
func (d *ADS1118) StartLocal() error {
	_, err := d.exchange(ConfigLocal)
	return err
}

// Read returns the result of the last conversion.
func (d *ADS1118) Read() (int16, error) {
	return d.exchange(ConfigRead)
}

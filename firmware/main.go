//go:build tinygo

//go:generate tinygo flash -target=pico

package main

import (
	"context"
	"log"
	"machine"
	"sync"
	"time"

	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/core"
	"github.com/itohio/gotip/pkg/display"
	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/hal"
	"github.com/itohio/gotip/pkg/pd"
	"github.com/itohio/gotip/pkg/sensor"
	"github.com/itohio/gotip/pkg/station"
)

// senseSamples is the number of ADC reads averaged per power sense.
const senseSamples = 8

var uart = machine.UART0

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	cfg := config.Default()

	// The heater stays off until the station enables it.
	PIN_HEATER_EN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HEATER_EN.Low()

	heater, err := newHeaterPWM(machine.PWM7, PIN_HEATER, PIN_HEATER_EN)
	if err != nil {
		halt("configure heater pwm", err)
	}

	spi := configureSPI()
	i2cMu := &sync.Mutex{}
	i2c := configureI2C(i2cMu)

	machine.InitADC()
	vbus := machine.ADC{Pin: PIN_VBUS_SENSE}
	vbus.Configure(machine.ADCConfig{})
	current := machine.ADC{Pin: PIN_CURRENT_SENSE}
	current.Configure(machine.ADCConfig{})
	detect := machine.ADC{Pin: PIN_TOOL_DETECT}
	detect.Configure(machine.ADCConfig{})

	for _, pin := range []machine.Pin{PIN_BUTTON_UP, PIN_BUTTON_DOWN, PIN_STAND} {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	for _, pin := range []machine.Pin{PIN_LED1, PIN_LED2, PIN_LED3} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}

	pdAlert := event.NewNotifier()
	PIN_PD_ALERT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if err := PIN_PD_ALERT.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		pdAlert.Notify()
	}); err != nil {
		halt("configure pd alert", err)
	}

	hw := core.Hardware{
		Thermocouple: sensor.NewADS1118(spi),
		Sink:         pd.NewSTUSB4500(i2c),
		PDAlert:      pdAlert.C(),
		PWM:          heater,
		Sense:        hal.NewAnalogSense(vbus, current, &cfg.Power, senseSamples),
		Detect:       detect,
		Up:           button(PIN_BUTTON_UP),
		Down:         button(PIN_BUTTON_DOWN),
		Stand:        button(PIN_STAND),
		LEDs:         []hal.LED{led(PIN_LED1), led(PIN_LED2), led(PIN_LED3)},
		Serial:       uart,
	}

	lcd := hd44780i2c.New(i2c, LCD_ADDRESS)
	if err := lcd.Configure(hd44780i2c.Config{Width: display.Width, Height: 2}); err != nil {
		log.Printf("Panel not found: %v", err)
	} else {
		hw.Panel = &lcd
	}

	st, err := core.New(hw, cfg)
	if err != nil {
		halt("create station", err)
	}

	PIN_OVERCURRENT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if err := PIN_OVERCURRENT.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		st.Guard.Trip()
	}); err != nil {
		halt("configure over-current input", err)
	}

	if err := st.Run(context.Background()); err != nil {
		halt("station stopped", err)
	}
}

func configureSPI() *hal.LockedSPI {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: SPI_FREQUENCY,
		SCK:       PIN_SPI_SCK,
		SDO:       PIN_SPI_SDO,
		SDI:       PIN_SPI_SDI,
		Mode:      1, // ADS1118 samples on the falling edge
	})
	if err != nil {
		halt("configure spi", err)
	}

	PIN_ADC_CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_ADC_CS.High()

	return hal.NewLockedSPI(&selectSPI{bus: machine.SPI0, cs: PIN_ADC_CS}, nil)
}

func configureI2C(mu *sync.Mutex) *hal.LockedI2C {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_I2C_SDA,
		SCL:       PIN_I2C_SCL,
	})
	if err != nil {
		halt("configure i2c", err)
	}
	return hal.NewLockedI2C(machine.I2C0, mu)
}

// halt reports a fatal error on the UART forever.
func halt(what string, err error) {
	for {
		println(what+":", err.Error())
		time.Sleep(time.Second)
	}
}

// selectSPI frames every transfer with the device's chip select.
type selectSPI struct {
	bus *machine.SPI
	cs  machine.Pin
}

func (s *selectSPI) Tx(w, r []byte) error {
	s.cs.Low()
	defer s.cs.High()
	return s.bus.Tx(w, r)
}

func (s *selectSPI) Transfer(w byte) (byte, error) {
	s.cs.Low()
	defer s.cs.High()
	return s.bus.Transfer(w)
}

// pwmGroup is the part of a TinyGo PWM peripheral the heater uses.
type pwmGroup interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// heaterPWM drives the heater MOSFET. The gate driver enable pin cuts the
// output independently of the duty, so Disable is interrupt safe.
type heaterPWM struct {
	pwm     pwmGroup
	channel uint8
	enable  machine.Pin
}

var _ hal.PWM = (*heaterPWM)(nil)

func newHeaterPWM(pwm pwmGroup, pin, enable machine.Pin) (*heaterPWM, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: PWM_PERIOD_NS}); err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}
	pwm.Set(ch, 0)
	return &heaterPWM{pwm: pwm, channel: ch, enable: enable}, nil
}

// Set scales duty from 0..station.PWMMaxPercentage to the counter top.
func (h *heaterPWM) Set(duty uint32) {
	duty = min(duty, station.PWMMaxPercentage)
	h.pwm.Set(h.channel, uint32(uint64(h.pwm.Top())*uint64(duty)/station.PWMMaxPercentage))
}

func (h *heaterPWM) Enable() {
	h.enable.High()
}

func (h *heaterPWM) Disable() {
	h.enable.Low()
}

// button is an active-low input with the internal pull-up.
type button machine.Pin

func (b button) Get() bool {
	return !machine.Pin(b).Get()
}

// led is an active-high indicator.
type led machine.Pin

func (l led) Set(on bool) {
	machine.Pin(l).Set(on)
}

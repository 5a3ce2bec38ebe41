//go:build tinygo

package main

import "machine"

const (
	// Thermocouple ADC (ADS1118) on SPI0
	PIN_SPI_SCK = machine.GP18
	PIN_SPI_SDO = machine.GP19
	PIN_SPI_SDI = machine.GP16
	PIN_ADC_CS  = machine.GP17

	// STUSB4500 and the character panel share I2C0
	PIN_I2C_SDA  = machine.GP4
	PIN_I2C_SCL  = machine.GP5
	PIN_PD_ALERT = machine.GP6 // Open drain, active low

	// Heater driver
	PIN_HEATER      = machine.GP14 // PWM7 A
	PIN_HEATER_EN   = machine.GP15 // Gate driver enable, active high
	PIN_OVERCURRENT = machine.GP13 // Comparator output, active low

	// Power sense
	PIN_VBUS_SENSE    = machine.ADC0 // GP26
	PIN_CURRENT_SENSE = machine.ADC1 // GP27
	PIN_TOOL_DETECT   = machine.ADC2 // GP28, handpiece identification divider

	// User interface, active low with pull-ups
	PIN_BUTTON_UP   = machine.GP2
	PIN_BUTTON_DOWN = machine.GP3
	PIN_STAND       = machine.GP7

	// Indicator LEDs, lowest setpoint first
	PIN_LED1 = machine.GP10
	PIN_LED2 = machine.GP11
	PIN_LED3 = machine.GP12

	// Peripheral settings
	SPI_FREQUENCY  = 1_000_000
	I2C_FREQUENCY  = 400_000
	PWM_PERIOD_NS  = 50_000 // 20 kHz
	LCD_ADDRESS    = 0x27
	UART_BAUD_RATE = 115200
)

package pd

import (
	"encoding/binary"
	"fmt"

	"tinygo.org/x/drivers"
)

// Address is the default STUSB4500 I2C address.
const Address = 0x28

// STUSB4500 registers.
const (
	RegAlertStatus1 = 0x0B // followed by ALERT_STATUS_1_MASK
	RegCCStatus     = 0x11
	RegPRTStatus    = 0x16
	RegCmdCtrl      = 0x1A
	RegRXHeader     = 0x31
	RegRXDataObj    = 0x33
	RegTXHeader     = 0x51
	RegDPMPDONumb   = 0x70
	RegDPMSnkPDO1   = 0x85 // three 4-byte sink PDOs
)

// Register bits and commands.
const (
	AlertPRTStatus     = 1 << 1 // ALERT_STATUS_1: protocol status changed
	PRTMessageReceived = 1 << 2 // PRT_STATUS: message received
	SoftResetHeader    = 0x0D   // TX_HEADER: soft reset
	SendCommand        = 0x26   // CMD_CTRL: send TX_HEADER message

	snkPDOSize            = 4
	maxDataObjects        = 7
	msgSourceCapabilities = 0x01
)

// Message header fields: type in bits 4..0, data object count in 14..12.
func headerType(h uint16) uint8 { return uint8(h & 0x1F) }

func headerObjects(h uint16) int { return int(h>>12) & 0x7 }

// SourceCapabilitiesHeader returns the header of a Source_Capabilities
// message carrying n objects.
func SourceCapabilitiesHeader(n int) uint16 {
	return uint16(n&0x7)<<12 | msgSourceCapabilities
}

// STUSB4500 drives the sink controller over I2C.
type STUSB4500 struct {
	bus     drivers.I2C
	Address uint16

	buf [1 + maxDataObjects*4]byte
}

// NewSTUSB4500 creates a driver at the default address.
func NewSTUSB4500(bus drivers.I2C) *STUSB4500 {
	return &STUSB4500{bus: bus, Address: Address}
}

func (d *STUSB4500) read(reg byte, r []byte) error {
	d.buf[0] = reg
	return d.bus.Tx(d.Address, d.buf[:1], r)
}

func (d *STUSB4500) write(reg byte, data ...byte) error {
	d.buf[0] = reg
	n := copy(d.buf[1:], data)
	return d.bus.Tx(d.Address, d.buf[:1+n], nil)
}

// SoftReset asks the source to resend its capabilities.
func (d *STUSB4500) SoftReset() error {
	if err := d.write(RegTXHeader, SoftResetHeader); err != nil {
		return fmt.Errorf("failed to write tx header: %w", err)
	}
	if err := d.write(RegCmdCtrl, SendCommand); err != nil {
		return fmt.Errorf("failed to send soft reset: %w", err)
	}
	return nil
}

// Poll services a pending alert. It returns the source capabilities when the
// alert carried a Source_Capabilities message, nil otherwise.
func (d *STUSB4500) Poll() ([]PDO, error) {
	var b [2]byte

	// Reading CC status acknowledges attach changes.
	if err := d.read(RegCCStatus, b[:1]); err != nil {
		return nil, fmt.Errorf("failed to read cc status: %w", err)
	}
	if err := d.read(RegAlertStatus1, b[:2]); err != nil {
		return nil, fmt.Errorf("failed to read alert status: %w", err)
	}
	alert := b[0] &^ b[1]
	if alert&AlertPRTStatus == 0 {
		return nil, nil
	}

	if err := d.read(RegPRTStatus, b[:1]); err != nil {
		return nil, fmt.Errorf("failed to read prt status: %w", err)
	}
	if b[0]&PRTMessageReceived == 0 {
		return nil, nil
	}

	if err := d.read(RegRXHeader, b[:2]); err != nil {
		return nil, fmt.Errorf("failed to read rx header: %w", err)
	}
	header := binary.LittleEndian.Uint16(b[:])
	n := headerObjects(header)
	if n == 0 || headerType(header) != msgSourceCapabilities {
		return nil, nil
	}

	raw := d.buf[1 : 1+n*4]
	if err := d.read(RegRXDataObj, raw); err != nil {
		return nil, fmt.Errorf("failed to read data objects: %w", err)
	}
	caps := make([]PDO, n)
	for i := range caps {
		caps[i] = PDO(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return caps, nil
}

// Request selects the source PDO at the 1-based position. The 5 V object is
// requested through sink PDO 1; any other is written into sink PDO 3.
func (d *STUSB4500) Request(position int, pdo PDO) error {
	if position <= 1 {
		if err := d.write(RegDPMPDONumb, 1); err != nil {
			return fmt.Errorf("failed to select sink pdo: %w", err)
		}
		return nil
	}

	var b [4]byte
	reg := byte(RegDPMSnkPDO1 + 2*snkPDOSize)
	if err := d.read(reg, b[:]); err != nil {
		return fmt.Errorf("failed to read sink pdo: %w", err)
	}
	snk := PDO(binary.LittleEndian.Uint32(b[:])).WithSupply(pdo.Voltage(), pdo.Current())
	binary.LittleEndian.PutUint32(b[:], uint32(snk))
	if err := d.write(reg, b[:]...); err != nil {
		return fmt.Errorf("failed to write sink pdo: %w", err)
	}
	if err := d.write(RegDPMPDONumb, 3); err != nil {
		return fmt.Errorf("failed to select sink pdo: %w", err)
	}
	return nil
}

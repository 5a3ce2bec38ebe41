package sim

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"github.com/itohio/gotip/pkg/config"
	"github.com/itohio/gotip/pkg/pd"
)

// stusb4500 is the sink controller with a source attached. A soft reset
// makes the source resend its capabilities after the configured latency;
// the sink PDO selection made before it becomes the contract.
type stusb4500 struct {
	plant   *Plant
	caps    []pd.PDO
	latency time.Duration

	mu     sync.Mutex
	regs   [256]byte
	alert  func()
	resets int
}

var _ drivers.I2C = (*stusb4500)(nil)

func newSTUSB4500(p *Plant, cfg config.SimConfig) *stusb4500 {
	s := &stusb4500{plant: p, latency: cfg.AlertLatency}
	for _, c := range cfg.SourcePDOs {
		s.caps = append(s.caps, pd.FixedPDO(c.Voltage, c.Current))
	}
	// Sink PDO 3 defaults to 20 V 1.5 A until written.
	binary.LittleEndian.PutUint32(s.regs[pd.RegDPMSnkPDO1+8:], uint32(pd.FixedPDO(20, 1.5)))
	return s
}

func (s *stusb4500) setAlert(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = fn
}

func (s *stusb4500) Tx(addr uint16, w, r []byte) error {
	if addr != pd.Address {
		return errors.New("sim: i2c nack")
	}
	if len(w) == 0 {
		return errors.New("sim: missing register")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg := int(w[0])
	if len(w) > 1 {
		copy(s.regs[reg:], w[1:])
		if reg == pd.RegCmdCtrl && w[1] == pd.SendCommand && s.regs[pd.RegTXHeader] == pd.SoftResetHeader {
			s.resets++
			time.AfterFunc(s.latency, s.answer)
		}
	}
	if len(r) > 0 {
		copy(r, s.regs[reg:])
		// Alert status clears on read.
		if reg == pd.RegAlertStatus1 {
			s.regs[pd.RegAlertStatus1] = 0
		}
	}
	return nil
}

// answer delivers the source capabilities and applies the contract.
func (s *stusb4500) answer() {
	s.mu.Lock()
	contract := s.contractLocked()
	s.regs[pd.RegAlertStatus1] |= pd.AlertPRTStatus
	s.regs[pd.RegPRTStatus] = pd.PRTMessageReceived
	binary.LittleEndian.PutUint16(s.regs[pd.RegRXHeader:], pd.SourceCapabilitiesHeader(len(s.caps)))
	for i, c := range s.caps {
		binary.LittleEndian.PutUint32(s.regs[pd.RegRXDataObj+4*i:], uint32(c))
	}
	alert := s.alert
	s.mu.Unlock()

	s.plant.contract(contract)
	if alert != nil {
		alert()
	}
}

// SetSource replaces the source capabilities. The source announces them
// unsolicited, which falls back to the first PDO until the sink requests
// again.
func (p *Plant) SetSource(caps ...pd.PDO) {
	s := p.stus
	s.mu.Lock()
	s.caps = caps
	s.regs[pd.RegDPMPDONumb] = 1
	s.mu.Unlock()

	s.answer()
}

// contractLocked picks the source PDO matching the selected sink PDO.
func (s *stusb4500) contractLocked() pd.PDO {
	if len(s.caps) == 0 {
		return pd.FixedPDO(5, 0.9)
	}
	if s.regs[pd.RegDPMPDONumb] != 3 {
		return s.caps[0]
	}
	snk := pd.PDO(binary.LittleEndian.Uint32(s.regs[pd.RegDPMSnkPDO1+8:]))
	for _, c := range s.caps {
		if c.Voltage() == snk.Voltage() {
			return pd.FixedPDO(c.Voltage(), min(c.Current(), snk.Current()))
		}
	}
	return s.caps[0]
}

// SoftResets returns the number of soft resets the source received.
func (p *Plant) SoftResets() int {
	p.stus.mu.Lock()
	defer p.stus.mu.Unlock()
	return p.stus.resets
}

package hal

import (
	"sync"

	"tinygo.org/x/drivers"
)

// LockedSPI serialises transfers on a shared SPI bus.
type LockedSPI struct {
	mu  *sync.Mutex
	bus drivers.SPI
}

var _ drivers.SPI = (*LockedSPI)(nil)

// NewLockedSPI wraps bus. Devices sharing the bus must share mu.
func NewLockedSPI(bus drivers.SPI, mu *sync.Mutex) *LockedSPI {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &LockedSPI{mu: mu, bus: bus}
}

// Tx performs a full-duplex transfer while holding the bus.
func (b *LockedSPI) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(w, r)
}

// Transfer exchanges a single byte while holding the bus.
func (b *LockedSPI) Transfer(w byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Transfer(w)
}

// Do runs fn with the bus held, for multi-transfer sequences.
func (b *LockedSPI) Do(fn func(bus drivers.SPI) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.bus)
}

// LockedI2C serialises transactions on a shared I2C bus.
type LockedI2C struct {
	mu  *sync.Mutex
	bus drivers.I2C
}

var _ drivers.I2C = (*LockedI2C)(nil)

// NewLockedI2C wraps bus. Devices sharing the bus must share mu.
func NewLockedI2C(bus drivers.I2C, mu *sync.Mutex) *LockedI2C {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &LockedI2C{mu: mu, bus: bus}
}

// Tx performs a write-then-read transaction while holding the bus.
func (b *LockedI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(addr, w, r)
}

// Package i2cbus exposes one bus of a controller as a periph.io i2c.Bus
// and as a TinyGo drivers.I2C, so existing sensor drivers run on top of the
// mailbox or the local driver unchanged.
package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"i2cmb/core"
)

// Controller is what the adapter needs from a driver: the local
// core.Master and the remote mailbox.Client both qualify.
type Controller interface {
	SetClock(bus core.BusID, baud uint32) error
	Read(bus core.BusID, addr core.Address, p []byte) (int, error)
	Write(bus core.BusID, addr core.Address, p []byte) (int, error)
}

// Speed limits accepted by SetSpeed.
const (
	MinSpeed = physic.KiloHertz
	MaxSpeed = 5 * physic.MegaHertz
)

var ErrSpeed = errors.New("i2cbus: speed out of range")

// Bus is one controller bus. Transactions on a Bus are serialized.
type Bus struct {
	mu   sync.Mutex
	ctrl Controller
	id   core.BusID
	name string
}

// New binds bus id of ctrl. name is returned by String.
func New(ctrl Controller, id core.BusID, name string) *Bus {
	if name == "" {
		name = fmt.Sprintf("i2cmb%d", id)
	}
	return &Bus{ctrl: ctrl, id: id, name: name}
}

func (b *Bus) String() string {
	return b.name
}

// ID returns the bus selector.
func (b *Bus) ID() core.BusID {
	return b.id
}

// Tx writes w then reads r. Each half is its own start/stop transaction;
// the core cannot issue a repeated start.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("i2cbus: %s: address 0x%x: %w", b.name, addr, core.ErrInvalidAddress)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	a := core.Address(addr)
	if len(w) > 0 {
		if _, err := b.ctrl.Write(b.id, a, w); err != nil {
			return fmt.Errorf("i2cbus: %s: write 0x%02x: %w", b.name, addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := b.ctrl.Read(b.id, a, r); err != nil {
			return fmt.Errorf("i2cbus: %s: read 0x%02x: %w", b.name, addr, err)
		}
	}
	return nil
}

// SetSpeed programs the bus clock.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f < MinSpeed || f > MaxSpeed {
		return fmt.Errorf("i2cbus: %s: %s: %w", b.name, f, ErrSpeed)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl.SetClock(b.id, uint32(f/physic.Hertz))
}

// Close implements i2c.BusCloser. The controller outlives its buses.
func (b *Bus) Close() error {
	return nil
}

// ReadRegister reads len(buf) bytes starting at register r.
func (b *Bus) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{r}, buf)
}

// WriteRegister writes buf starting at register r.
func (b *Bus) WriteRegister(addr uint8, r uint8, buf []byte) error {
	w := make([]byte, 1+len(buf))
	w[0] = r
	copy(w[1:], buf)
	return b.Tx(uint16(addr), w, nil)
}

var (
	_ i2c.BusCloser = (*Bus)(nil)
	_ drivers.I2C   = (*Bus)(nil)
)

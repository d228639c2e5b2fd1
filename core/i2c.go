// Bus-master driver for a memory-mapped two-wire controller with the
// prescale/control/data/command register block described in regs.go.
package core

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Master drives every bus in its BusTable. It holds no lock: callers must
// serialize operations on the same bus.
type Master struct {
	space       Space
	buses       BusTable
	sourceHz    uint32
	defaultBaud uint32
	timeout     time.Duration
	clock       clock.Clock
}

// NewMaster creates a driver over space. Buses must be non-empty.
func NewMaster(space Space, cfg MasterConfig) (*Master, error) {
	if cfg.Buses.Len() == 0 {
		return nil, ErrNoBuses
	}
	cfg.applyDefaults()
	if _, err := Prescale(cfg.SourceClockHz, cfg.DefaultBaud); err != nil {
		return nil, err
	}
	return &Master{
		space:       space,
		buses:       cfg.Buses,
		sourceHz:    cfg.SourceClockHz,
		defaultBaud: cfg.DefaultBaud,
		timeout:     cfg.PollTimeout,
		clock:       cfg.Clock,
	}, nil
}

// Buses returns the bus table.
func (m *Master) Buses() BusTable {
	return m.buses
}

// Regs returns the register block of bus id.
func (m *Master) Regs(id BusID) (Regs, error) {
	base, ok := m.buses.Base(id)
	if !ok {
		return Regs{}, ErrOutOfRange
	}
	return NewRegs(m.space, base), nil
}

// Prescale computes the divider for baud from a source clock:
// source / (5 * baud). The result must fit the two 8-bit registers.
func Prescale(sourceHz, baud uint32) (uint16, error) {
	if baud == 0 {
		return 0, ErrInvalidBaud
	}
	p := uint64(sourceHz) / (5 * uint64(baud))
	if p == 0 || p > 0xFFFF {
		return 0, ErrInvalidBaud
	}
	return uint16(p), nil
}

// Enable programs the default bus frequency and turns the core on.
func (m *Master) Enable(id BusID) error {
	return m.SetClock(id, m.defaultBaud)
}

// SetClock disables the core, rewrites the prescaler for baud and enables
// the core again. Repeating the call with the same baud leaves the same
// register state.
func (m *Master) SetClock(id BusID, baud uint32) error {
	regs, err := m.Regs(id)
	if err != nil {
		return err
	}
	p, err := Prescale(m.sourceHz, baud)
	if err != nil {
		return err
	}

	regs.SetControl(0)
	regs.SetPrescale(p)
	regs.SetControl(CtrlEnable)

	DebugPrintln("[I2C] bus " + utoa(uint32(id)) + " baud=" + utoa(baud) + " prescale=" + utoa(uint32(p)))
	return nil
}

// Disable issues a stop condition. The enable bit is left set, so the core
// stays enabled with the bus idle.
func (m *Master) Disable(id BusID) error {
	regs, err := m.Regs(id)
	if err != nil {
		return err
	}
	regs.SetCommand(CmdStop)
	return nil
}

// Read reads len(p) bytes from addr. The last byte is received with the
// ack and stop flags set. On an address NACK or a timeout it returns the
// number of bytes already received; nothing is retried and no extra stop is
// issued.
func (m *Master) Read(id BusID, addr Address, p []byte) (int, error) {
	regs, err := m.begin(id, addr, len(p))
	if err != nil {
		return 0, err
	}
	if err := m.address(regs, addr, true); err != nil {
		return 0, err
	}

	last := len(p) - 1
	for i := range p {
		if i == last {
			regs.SetCommand(CmdRead | CmdAck | CmdStop)
		} else {
			regs.SetCommand(CmdRead)
		}
		if err := m.waitTransfer(regs); err != nil {
			return i, err
		}
		p[i] = regs.Receive()
	}
	return len(p), nil
}

// Write writes p to addr with the stop flag bundled into the last byte.
// Every byte must be acknowledged; the first NACK aborts with n equal to
// the number of bytes the slave accepted.
func (m *Master) Write(id BusID, addr Address, p []byte) (int, error) {
	regs, err := m.begin(id, addr, len(p))
	if err != nil {
		return 0, err
	}
	if err := m.address(regs, addr, false); err != nil {
		return 0, err
	}

	last := len(p) - 1
	for i, b := range p {
		regs.SetTransmit(b)
		if i == last {
			regs.SetCommand(CmdWrite | CmdStop)
		} else {
			regs.SetCommand(CmdWrite)
		}
		if err := m.waitTransfer(regs); err != nil {
			return i, err
		}
		if regs.Status()&StatusRxNack != 0 {
			DebugPrintln("[I2C] data nack addr=0x" + hex8(uint8(addr)) + " byte=" + itoa(i))
			return i, &NackError{Phase: PhaseData, Address: addr, Byte: i}
		}
	}
	return len(p), nil
}

// Tx writes w and then reads r as two separate transactions. Either slice
// may be empty.
func (m *Master) Tx(id BusID, addr Address, w, r []byte) error {
	if len(w) > 0 {
		if _, err := m.Write(id, addr, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if _, err := m.Read(id, addr, r); err != nil {
			return err
		}
	}
	return nil
}

// begin validates a transfer and waits for any earlier one to finish.
func (m *Master) begin(id BusID, addr Address, n int) (Regs, error) {
	regs, err := m.Regs(id)
	if err != nil {
		return Regs{}, err
	}
	if n < 1 {
		return Regs{}, ErrInvalidLength
	}
	if addr > 0x7F {
		return Regs{}, ErrInvalidAddress
	}
	if err := m.waitTransfer(regs); err != nil {
		return Regs{}, err
	}
	return regs, nil
}

// address runs the start + address phase.
func (m *Master) address(regs Regs, addr Address, read bool) error {
	b := uint8(addr) << 1
	if read {
		b |= 1
	}
	regs.SetTransmit(b)
	regs.SetCommand(CmdStart | CmdWrite)
	if err := m.waitTransfer(regs); err != nil {
		return err
	}
	if regs.Status()&StatusRxNack != 0 {
		DebugPrintln("[I2C] address nack addr=0x" + hex8(uint8(addr)))
		return &NackError{Phase: PhaseAddress, Address: addr}
	}
	return nil
}

// Package sim simulates bus-master register blocks and the slaves attached
// to them. A *Space satisfies core.Space, so the real driver runs unchanged
// against it in tests and in the daemon's simulated backend.
package sim

import (
	"sync"

	"i2cmb/core"
)

// Device is a slave on a simulated bus.
type Device interface {
	// Address returns the 7-bit address the device answers to.
	Address() core.Address

	// Start is called when the device is addressed. Returning false
	// leaves the address byte unacknowledged.
	Start(read bool) bool

	// Receive takes a data byte written by the master. Returning false
	// NACKs it.
	Receive(b byte) bool

	// Transmit returns the next byte the master clocks in.
	Transmit() byte

	// Stop is called on a stop condition while the device is addressed.
	Stop()
}

// Access is one recorded register access.
type Access struct {
	Base  uintptr
	Reg   core.Reg
	Write bool
	Value uint32
}

// Space holds any number of simulated register blocks. Register accesses
// are only logged by a space made with NewRecordingSpace.
type Space struct {
	mu       sync.Mutex
	blocks   []*Controller
	record   bool
	accesses []Access
}

// NewSpace creates an empty register space that keeps no access log.
func NewSpace() *Space {
	return &Space{}
}

// NewRecordingSpace creates an empty register space that logs every
// access until ResetLog.
func NewRecordingSpace() *Space {
	return &Space{record: true}
}

// Recording reports whether accesses are logged.
func (s *Space) Recording() bool {
	return s.record
}

// AddController maps a new controller at base.
func (s *Space) AddController(base uintptr) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Controller{
		base:    base,
		devices: make(map[core.Address]Device),
	}
	s.blocks = append(s.blocks, c)
	return c
}

// Accesses returns a copy of the access log.
func (s *Space) Accesses() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Access, len(s.accesses))
	copy(out, s.accesses)
	return out
}

// Writes returns only the logged register writes.
func (s *Space) Writes() []Access {
	var out []Access
	for _, a := range s.Accesses() {
		if a.Write {
			out = append(out, a)
		}
	}
	return out
}

// ResetLog clears the access log.
func (s *Space) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accesses = nil
}

func (s *Space) lookup(addr uintptr) (*Controller, core.Reg) {
	for _, c := range s.blocks {
		if addr >= c.base && addr < c.base+core.RegCount*4 && (addr-c.base)%4 == 0 {
			return c, core.Reg((addr - c.base) / 4)
		}
	}
	panic("sim: access to unmapped address")
}

// Load implements core.Space.
func (s *Space) Load(addr uintptr) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, reg := s.lookup(addr)
	v := c.load(reg)
	if s.record {
		s.accesses = append(s.accesses, Access{Base: c.base, Reg: reg, Value: v})
	}
	return v
}

// Store implements core.Space.
func (s *Space) Store(addr uintptr, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, reg := s.lookup(addr)
	if s.record {
		s.accesses = append(s.accesses, Access{Base: c.base, Reg: reg, Write: true, Value: v})
	}
	c.store(reg, v)
}

var _ core.Space = (*Space)(nil)

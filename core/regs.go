package core

// Space is a memory-mapped register space. Each call is exactly one 32-bit
// access; implementations must not cache, merge or reorder accesses.
type Space interface {
	// Load reads the 32-bit register at the given byte address.
	Load(addr uintptr) uint32

	// Store writes the 32-bit register at the given byte address.
	Store(addr uintptr, v uint32)
}

// Reg is a word offset inside one bus-master register block.
type Reg uint8

// Register block layout. Offsets are in 32-bit words from the instance base.
const (
	RegPrescaleLo Reg = 0 // prescale low byte
	RegPrescaleHi Reg = 1 // prescale high byte
	RegControl    Reg = 2 // control
	RegData       Reg = 3 // TXR on write, RXR on read
	RegCommand    Reg = 4 // CR on write, SR on read

	// RegCount is the number of registers in a block.
	RegCount = 5
)

// Control register bits.
const (
	CtrlEnable    = 0x80 // core enable
	CtrlIRQEnable = 0x40 // interrupt enable
)

// Command register bits.
const (
	CmdStart  = 0x80 // generate (repeated) start
	CmdStop   = 0x40 // generate stop
	CmdRead   = 0x20 // read from slave
	CmdWrite  = 0x10 // write to slave
	CmdAck    = 0x08 // when receiving: 0 sends ACK, 1 sends NACK
	CmdIRQAck = 0x01 // clear pending interrupt
)

// Status register bits.
const (
	StatusRxNack = 0x80 // set when the slave did not acknowledge
	StatusBusy   = 0x40 // bus busy (between start and stop)
	StatusTIP    = 0x02 // transfer in progress
	StatusIRQ    = 0x01 // interrupt flag
)

// Regs gives typed access to the five registers of one bus-master instance.
type Regs struct {
	space Space
	base  uintptr
}

// NewRegs binds a register block at base inside space.
func NewRegs(space Space, base uintptr) Regs {
	return Regs{space: space, base: base}
}

// Base returns the block's base address.
func (r Regs) Base() uintptr {
	return r.base
}

// Addr returns the byte address of reg.
func (r Regs) Addr(reg Reg) uintptr {
	return r.base + uintptr(reg)*4
}

// Read reads a raw register.
func (r Regs) Read(reg Reg) uint32 {
	return r.space.Load(r.Addr(reg))
}

// Write writes a raw register.
func (r Regs) Write(reg Reg, v uint32) {
	r.space.Store(r.Addr(reg), v)
}

// Prescale reads back both prescale halves.
func (r Regs) Prescale() uint16 {
	lo := r.Read(RegPrescaleLo) & 0xFF
	hi := r.Read(RegPrescaleHi) & 0xFF
	return uint16(hi<<8 | lo)
}

// SetPrescale writes the low half, then the high half.
func (r Regs) SetPrescale(p uint16) {
	r.Write(RegPrescaleLo, uint32(p&0xFF))
	r.Write(RegPrescaleHi, uint32(p>>8))
}

func (r Regs) Control() uint8 {
	return uint8(r.Read(RegControl))
}

func (r Regs) SetControl(v uint8) {
	r.Write(RegControl, uint32(v))
}

// SetTransmit loads the transmit register (data byte or address+direction).
func (r Regs) SetTransmit(b uint8) {
	r.Write(RegData, uint32(b))
}

// Receive returns the last byte shifted in from the bus.
func (r Regs) Receive() uint8 {
	return uint8(r.Read(RegData))
}

// SetCommand writes the command register.
func (r Regs) SetCommand(c uint8) {
	r.Write(RegCommand, uint32(c))
}

// Status reads the status register.
func (r Regs) Status() uint8 {
	return uint8(r.Read(RegCommand))
}

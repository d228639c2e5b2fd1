package sim

import "i2cmb/core"

// Controller models one bus-master core: prescale, control, data and
// command/status registers plus the bus state behind them.
type Controller struct {
	base uintptr

	prescaleLo uint32
	prescaleHi uint32
	control    uint32
	txr        uint8
	rxr        uint8
	status     uint8

	devices map[core.Address]Device
	active  Device
	reading bool
	pending int

	// BusyPolls is how many status reads keep TIP set after each command.
	BusyPolls int

	// Stuck keeps TIP set forever.
	Stuck bool

	// OnStatusRead runs on every status read, before TIP is evaluated.
	// Tests use it to advance a mock clock.
	OnStatusRead func()

	// ByteCycles counts data-phase commands (read or write without start).
	ByteCycles int
}

// Base returns the controller's base address.
func (c *Controller) Base() uintptr {
	return c.base
}

// Attach puts dev on the bus.
func (c *Controller) Attach(dev Device) {
	c.devices[dev.Address()] = dev
}

// Enabled reports whether the core enable bit is set.
func (c *Controller) Enabled() bool {
	return c.control&core.CtrlEnable != 0
}

// Prescale returns the programmed prescale value.
func (c *Controller) Prescale() uint16 {
	return uint16(c.prescaleHi&0xFF)<<8 | uint16(c.prescaleLo&0xFF)
}

// Control returns the raw control register.
func (c *Controller) Control() uint32 {
	return c.control
}

func (c *Controller) load(reg core.Reg) uint32 {
	switch reg {
	case core.RegPrescaleLo:
		return c.prescaleLo
	case core.RegPrescaleHi:
		return c.prescaleHi
	case core.RegControl:
		return c.control
	case core.RegData:
		return uint32(c.rxr)
	case core.RegCommand:
		if c.OnStatusRead != nil {
			c.OnStatusRead()
		}
		st := c.status
		if c.Stuck {
			st |= core.StatusTIP
		} else if c.pending > 0 {
			c.pending--
			st |= core.StatusTIP
		}
		return uint32(st)
	}
	return 0
}

func (c *Controller) store(reg core.Reg, v uint32) {
	switch reg {
	case core.RegPrescaleLo:
		c.prescaleLo = v & 0xFF
	case core.RegPrescaleHi:
		c.prescaleHi = v & 0xFF
	case core.RegControl:
		c.control = v & (core.CtrlEnable | core.CtrlIRQEnable)
	case core.RegData:
		c.txr = uint8(v)
	case core.RegCommand:
		c.command(uint8(v))
	}
}

func (c *Controller) command(cmd uint8) {
	if cmd&core.CmdIRQAck != 0 {
		c.status &^= core.StatusIRQ
	}
	if !c.Enabled() {
		return
	}

	switch {
	case cmd&core.CmdStart != 0 && cmd&core.CmdWrite != 0:
		c.addressPhase()
	case cmd&core.CmdWrite != 0:
		c.ByteCycles++
		c.writePhase()
	case cmd&core.CmdRead != 0:
		c.ByteCycles++
		c.readPhase()
	}
	if cmd&(core.CmdRead|core.CmdWrite) != 0 {
		c.pending = c.BusyPolls
		if c.control&core.CtrlIRQEnable != 0 {
			c.status |= core.StatusIRQ
		}
	}

	if cmd&core.CmdStop != 0 {
		if c.active != nil {
			c.active.Stop()
			c.active = nil
		}
		c.status &^= core.StatusBusy
	}
}

func (c *Controller) addressPhase() {
	if c.active != nil {
		c.active.Stop()
		c.active = nil
	}
	c.status |= core.StatusBusy
	addr := core.Address(c.txr >> 1)
	read := c.txr&1 != 0
	dev, ok := c.devices[addr]
	if !ok || !dev.Start(read) {
		c.status |= core.StatusRxNack
		return
	}
	c.status &^= core.StatusRxNack
	c.active = dev
	c.reading = read
}

func (c *Controller) writePhase() {
	if c.active == nil || c.reading || !c.active.Receive(c.txr) {
		c.status |= core.StatusRxNack
		return
	}
	c.status &^= core.StatusRxNack
}

func (c *Controller) readPhase() {
	c.status &^= core.StatusRxNack
	if c.active == nil || !c.reading {
		c.rxr = 0xFF
		return
	}
	c.rxr = c.active.Transmit()
}

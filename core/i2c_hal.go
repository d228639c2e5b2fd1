package core

// Driver is the bus-master interface the dispatcher routes commands to.
// *Master implements it; tests substitute recording fakes.
type Driver interface {
	// Enable programs the default bus frequency and enables the core.
	Enable(bus BusID) error

	// SetClock reprograms the bus frequency and re-enables the core.
	SetClock(bus BusID, baud uint32) error

	// Disable issues a stop condition without clearing the enable bit.
	Disable(bus BusID) error

	// Read fills p from the slave at addr and returns the bytes received.
	Read(bus BusID, addr Address, p []byte) (int, error)

	// Write sends p to the slave at addr and returns the bytes acknowledged.
	Write(bus BusID, addr Address, p []byte) (int, error)
}

var _ Driver = (*Master)(nil)

// BusLister is implemented by drivers that know their bus table, letting
// the dispatcher report an unknown bus ahead of operand errors.
type BusLister interface {
	Buses() BusTable
}

var _ BusLister = (*Master)(nil)

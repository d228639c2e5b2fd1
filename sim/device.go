package sim

import "i2cmb/core"

// EchoDevice answers reads with the bytes of its most recent write.
type EchoDevice struct {
	addr core.Address
	data []byte
	pos  int

	// NackAddress refuses to be addressed.
	NackAddress bool

	// NackAt refuses the data byte with this index in a write; negative
	// disables the injection.
	NackAt int

	written int
}

// NewEchoDevice creates an echo slave at addr.
func NewEchoDevice(addr core.Address) *EchoDevice {
	return &EchoDevice{addr: addr, NackAt: -1}
}

func (d *EchoDevice) Address() core.Address {
	return d.addr
}

func (d *EchoDevice) Start(read bool) bool {
	if d.NackAddress {
		return false
	}
	if read {
		d.pos = 0
	} else {
		d.data = d.data[:0]
		d.written = 0
	}
	return true
}

func (d *EchoDevice) Receive(b byte) bool {
	if d.NackAt >= 0 && d.written == d.NackAt {
		return false
	}
	d.written++
	d.data = append(d.data, b)
	return true
}

func (d *EchoDevice) Transmit() byte {
	if d.pos >= len(d.data) {
		return 0xFF
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *EchoDevice) Stop() {}

// Data returns the bytes stored by the last write.
func (d *EchoDevice) Data() []byte {
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}

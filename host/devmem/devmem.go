// Package devmem maps bus-master register blocks from /dev/mem so the
// driver can run from Linux userspace on the SoC that hosts the cores.
package devmem

import (
	"errors"

	"i2cmb/core"
)

// DefaultPath is the physical memory device.
const DefaultPath = "/dev/mem"

var (
	ErrEmptyWindow = errors.New("devmem: empty window")
	ErrUnsupported = errors.New("devmem: not supported on this platform")
)

// Span returns the smallest range covering every register block in t.
func Span(t core.BusTable) (base uintptr, size int, err error) {
	if t.Len() == 0 {
		return 0, 0, ErrEmptyWindow
	}
	lo, hi := ^uintptr(0), uintptr(0)
	for id := 0; id < t.Len(); id++ {
		b, _ := t.Base(core.BusID(id))
		if b < lo {
			lo = b
		}
		if end := b + core.RegCount*4; end > hi {
			hi = end
		}
	}
	return lo, int(hi - lo), nil
}

// OpenTable maps the span of every block in t.
func OpenTable(path string, t core.BusTable) (*Window, error) {
	base, size, err := Span(t)
	if err != nil {
		return nil, err
	}
	return Open(path, base, size)
}

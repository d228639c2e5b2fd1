//go:build tinygo

package core

import (
	"runtime/volatile"
	"unsafe"
)

// VolatileSpace accesses physical addresses directly. It is only usable on
// targets where the bus master is mapped into the CPU address space.
type VolatileSpace struct{}

func (VolatileSpace) Load(addr uintptr) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(addr)).Get()
}

func (VolatileSpace) Store(addr uintptr, v uint32) {
	(*volatile.Register32)(unsafe.Pointer(addr)).Set(v)
}

//go:build !linux

package devmem

import "i2cmb/core"

// Window is unavailable off Linux.
type Window struct{}

// Open always fails off Linux.
func Open(path string, base uintptr, size int) (*Window, error) {
	return nil, ErrUnsupported
}

func (w *Window) Load(addr uintptr) uint32 { panic(ErrUnsupported) }

func (w *Window) Store(addr uintptr, v uint32) { panic(ErrUnsupported) }

func (w *Window) Close() error { return nil }

var _ core.Space = (*Window)(nil)

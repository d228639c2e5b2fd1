//go:build linux

package devmem

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"i2cmb/core"
)

// Window is a mapped range of physical memory. Every Load and Store is a
// single aligned 32-bit access.
type Window struct {
	mem  []byte
	base uintptr // physical address of mem[0]
	lo   uintptr // first address callers may touch
	hi   uintptr // one past the last
}

// Open maps size bytes of path starting at physical address base.
func Open(path string, base uintptr, size int) (*Window, error) {
	if size <= 0 {
		return nil, ErrEmptyWindow
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: open %s: %w", path, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer f.Close()

	page := uintptr(unix.Getpagesize())
	start := base &^ (page - 1)
	length := int((base + uintptr(size) - start + page - 1) &^ (page - 1))

	mem, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("devmem: mmap 0x%x+%d: %w", start, length, err)
	}

	return &Window{
		mem:  mem,
		base: start,
		lo:   base,
		hi:   base + uintptr(size),
	}, nil
}

func (w *Window) word(addr uintptr) *uint32 {
	if addr < w.lo || addr+4 > w.hi || addr%4 != 0 {
		panic(fmt.Sprintf("devmem: access 0x%x outside window 0x%x-0x%x", addr, w.lo, w.hi))
	}
	return (*uint32)(unsafe.Pointer(&w.mem[addr-w.base]))
}

// Load implements core.Space.
func (w *Window) Load(addr uintptr) uint32 {
	return atomic.LoadUint32(w.word(addr))
}

// Store implements core.Space.
func (w *Window) Store(addr uintptr, v uint32) {
	atomic.StoreUint32(w.word(addr), v)
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem = nil
	return err
}

var _ core.Space = (*Window)(nil)

//go:build !tinygo

package core

import "sync"

// State is the saved critical section state. Unused on the host.
type State uintptr

// hostCritical stands in for masking interrupts: the daemon records trace
// events from its serve goroutine and dumps them from another.
var hostCritical sync.Mutex

func disableInterrupts() State {
	hostCritical.Lock()
	return 0
}

func restoreInterrupts(state State) {
	hostCritical.Unlock()
}

package core

import (
	"time"

	"github.com/benbjohnson/clock"
)

// MaxBuses is the number of bus-master instances a table may hold.
const MaxBuses = 4

// Defaults applied by NewMaster for zero MasterConfig fields.
const (
	DefaultSourceClockHz = 154000000
	DefaultBaud          = 100000
	DefaultPollTimeout   = 25 * time.Millisecond
)

// BusID selects a bus-master instance. It is as wide as the mailbox
// sub-index so an out-of-range selector can never alias a valid one.
type BusID uint32

// Address is a 7-bit slave address.
type Address uint8

// BusTable maps bus indices to register block base addresses. It is fixed
// at construction.
type BusTable struct {
	bases []uintptr
}

// NewBusTable builds a table from base addresses, index i getting bases[i].
func NewBusTable(bases ...uintptr) (BusTable, error) {
	if len(bases) == 0 {
		return BusTable{}, ErrNoBuses
	}
	if len(bases) > MaxBuses {
		return BusTable{}, ErrTooManyBuses
	}
	for i := range bases {
		for j := i + 1; j < len(bases); j++ {
			if bases[i] == bases[j] {
				return BusTable{}, ErrDuplicateBase
			}
		}
	}
	t := BusTable{bases: make([]uintptr, len(bases))}
	copy(t.bases, bases)
	return t, nil
}

// Len returns the number of configured buses.
func (t BusTable) Len() int {
	return len(t.bases)
}

// Base returns the base address of bus id.
func (t BusTable) Base(id BusID) (uintptr, bool) {
	if uint64(id) >= uint64(len(t.bases)) {
		return 0, false
	}
	return t.bases[id], true
}

// MasterConfig configures a Master.
type MasterConfig struct {
	Buses BusTable

	// SourceClockHz is the clock feeding the bus-master core.
	SourceClockHz uint32

	// DefaultBaud is the bus frequency programmed by Enable.
	DefaultBaud uint32

	// PollTimeout bounds each wait on the transfer-in-progress bit.
	PollTimeout time.Duration

	// Clock is the time source for poll deadlines.
	Clock clock.Clock
}

func (c *MasterConfig) applyDefaults() {
	if c.SourceClockHz == 0 {
		c.SourceClockHz = DefaultSourceClockHz
	}
	if c.DefaultBaud == 0 {
		c.DefaultBaud = DefaultBaud
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

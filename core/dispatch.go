package core

import "errors"

// Dispatcher routes mailbox commands to a Driver and writes results back
// into the same mailbox. One Dispatch runs at a time per mailbox.
type Dispatcher struct {
	driver Driver
	ops    *OpRegistry
}

// NewDispatcher creates a dispatcher over drv using the default operations.
func NewDispatcher(drv Driver) *Dispatcher {
	return NewDispatcherWithOps(drv, DefaultOps())
}

// NewDispatcherWithOps creates a dispatcher with a custom registry.
func NewDispatcherWithOps(drv Driver, ops *OpRegistry) *Dispatcher {
	return &Dispatcher{driver: drv, ops: ops}
}

// Ops returns the registry used for decoding.
func (d *Dispatcher) Ops() *OpRegistry {
	return d.ops
}

// Dispatch decodes mb, runs exactly one driver operation and stores the
// status of reads and writes in SlotAddr. Read data is packed from
// SlotData. Unknown operation codes leave mb untouched and return
// ErrUnknownOp.
func (d *Dispatcher) Dispatch(mb Mailbox) error {
	cmd, err := d.ops.Decode(mb)
	if err != nil {
		if errors.Is(err, ErrUnknownOp) || errors.Is(err, ErrShortMailbox) {
			return err
		}
		// Operand validation failed on a command that has a status slot.
		// A bad bus selector outranks bad operands.
		w := Word(mb[SlotCommand])
		if !d.hasBus(BusID(w.Sub())) {
			err = ErrOutOfRange
		}
		if op := w.Op(); (op == OpRead || op == OpWrite) && len(mb) > SlotLength {
			RecordTrace(TraceEvent{Op: op, Bus: BusID(w.Sub()), Addr: mb[SlotAddr], Len: mb[SlotLength], Status: StatusOf(err)})
			mb[SlotAddr] = StatusOf(err)
		}
		DebugPrintln("[MB] rejected word=0x" + hex32(mb[SlotCommand]) + ": " + err.Error())
		return err
	}

	switch c := cmd.(type) {
	case EnableCommand:
		err = d.driver.Enable(c.BusID)
		RecordTrace(TraceEvent{Op: OpEnable, Bus: c.BusID, Status: StatusOf(err)})

	case SetClockCommand:
		err = d.driver.SetClock(c.BusID, c.Baud)
		RecordTrace(TraceEvent{Op: OpSetClock, Bus: c.BusID, Addr: c.Baud, Status: StatusOf(err)})

	case DisableCommand:
		err = d.driver.Disable(c.BusID)
		RecordTrace(TraceEvent{Op: OpDisable, Bus: c.BusID, Status: StatusOf(err)})

	case ReadCommand:
		buf := make([]byte, c.Len)
		var n int
		n, err = d.driver.Read(c.BusID, c.Addr, buf)
		PackBytes(mb[SlotData:], buf[:n])
		mb[SlotAddr] = StatusOf(err)
		RecordTrace(TraceEvent{Op: OpRead, Bus: c.BusID, Addr: uint32(c.Addr), Len: uint32(c.Len), Status: mb[SlotAddr]})

	case WriteCommand:
		_, err = d.driver.Write(c.BusID, c.Addr, c.Data)
		mb[SlotAddr] = StatusOf(err)
		RecordTrace(TraceEvent{Op: OpWrite, Bus: c.BusID, Addr: uint32(c.Addr), Len: uint32(len(c.Data)), Status: mb[SlotAddr]})

	default:
		// A custom registry decoded something this dispatcher cannot run.
		return ErrUnknownOp
	}
	return err
}

// hasBus reports whether id is a configured bus. Drivers that cannot list
// their buses accept every id and range-check in the operation itself.
func (d *Dispatcher) hasBus(id BusID) bool {
	bl, ok := d.driver.(BusLister)
	if !ok {
		return true
	}
	_, ok = bl.Buses().Base(id)
	return ok
}

// HandleBlock serves one transport block. A non-empty block is dispatched
// as a mailbox and returned with the dispatch status appended, so control
// operations report errors too. A block longer than the mailbox is not
// dispatched; its reply is the status word alone. An empty block asks for
// the operation dictionary: the reply is its length in bytes followed by
// the packed text.
func (d *Dispatcher) HandleBlock(words []uint32) []uint32 {
	if len(words) > MailboxWords {
		DebugPrintln("[MB] rejected block of " + itoa(len(words)) + " words")
		return []uint32{StatusOf(ErrLongMailbox)}
	}
	if len(words) == 0 {
		dict := d.ops.Dictionary()
		reply := make([]uint32, 1+WordsFor(len(dict)))
		reply[0] = uint32(len(dict))
		PackBytes(reply[1:], []byte(dict))
		return reply
	}
	err := d.Dispatch(Mailbox(words))
	return append(words, StatusOf(err))
}

package core

import (
	"sync"
)

// Op is a mailbox operation code.
type Op uint16

// Operation codes understood by the dispatcher. Other codes are ignored.
const (
	OpEnable   Op = 1
	OpSetClock Op = 2
	OpDisable  Op = 3
	OpRead     Op = 5
	OpWrite    Op = 8
)

func (op Op) String() string {
	switch op {
	case OpEnable:
		return "enable"
	case OpSetClock:
		return "set_clock"
	case OpDisable:
		return "disable"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	}
	return "op" + utoa(uint32(op))
}

// Command is a decoded mailbox command.
type Command interface {
	Op() Op
	Bus() BusID
}

type EnableCommand struct{ BusID BusID }

type SetClockCommand struct {
	BusID BusID
	Baud  uint32
}

type DisableCommand struct{ BusID BusID }

type ReadCommand struct {
	BusID BusID
	Addr  Address
	Len   int
}

type WriteCommand struct {
	BusID BusID
	Addr  Address
	Data  []byte
}

func (c EnableCommand) Op() Op { return OpEnable }
func (c EnableCommand) Bus() BusID { return c.BusID }

func (c SetClockCommand) Op() Op { return OpSetClock }
func (c SetClockCommand) Bus() BusID { return c.BusID }

func (c DisableCommand) Op() Op { return OpDisable }
func (c DisableCommand) Bus() BusID { return c.BusID }

func (c ReadCommand) Op() Op { return OpRead }
func (c ReadCommand) Bus() BusID { return c.BusID }

func (c WriteCommand) Op() Op { return OpWrite }
func (c WriteCommand) Bus() BusID { return c.BusID }

// Decoder turns the operands of a mailbox into a Command. It must check
// every operand it reads against len(mb).
type Decoder func(w Word, mb Mailbox) (Command, error)

// OpEntry describes one registered operation.
type OpEntry struct {
	Op     Op
	Name   string
	Format string // Operand layout for the dictionary (e.g. "addr=%u len=%u")
	Decode Decoder
}

// OpRegistry maps operation codes to decoders.
type OpRegistry struct {
	mu         sync.RWMutex
	ops        map[Op]*OpEntry
	order      []Op
	dictionary string // Serialized listing for host tooling
}

// NewOpRegistry creates an empty registry.
func NewOpRegistry() *OpRegistry {
	return &OpRegistry{
		ops: make(map[Op]*OpEntry),
	}
}

// Register adds or replaces the decoder for op.
func (r *OpRegistry) Register(op Op, name, format string, decode Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op]; !exists {
		r.order = append(r.order, op)
	}
	r.ops[op] = &OpEntry{
		Op:     op,
		Name:   name,
		Format: format,
		Decode: decode,
	}

	r.rebuildDictionary()
}

// Lookup retrieves the entry for op.
func (r *OpRegistry) Lookup(op Op) (*OpEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ops[op]
	return e, ok
}

// Count returns the number of registered operations
func (r *OpRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Decode decodes the mailbox's command word and operands.
func (r *OpRegistry) Decode(mb Mailbox) (Command, error) {
	if len(mb) <= SlotCommand {
		return nil, ErrShortMailbox
	}
	w := Word(mb[SlotCommand])
	e, ok := r.Lookup(w.Op())
	if !ok {
		return nil, ErrUnknownOp
	}
	return e.Decode(w, mb)
}

// Dictionary returns one "code name format" line per operation.
func (r *OpRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary must be called with lock held
func (r *OpRegistry) rebuildDictionary() {
	dict := ""
	for _, op := range r.order {
		e := r.ops[op]
		line := utoa(uint32(op)) + " " + e.Name
		if e.Format != "" {
			line += " " + e.Format
		}
		dict += line + "\n"
	}
	r.dictionary = dict
}

// RegisterI2COps registers the bus-master operations.
func RegisterI2COps(r *OpRegistry) {
	r.Register(OpEnable, "enable", "", decodeEnable)
	r.Register(OpSetClock, "set_clock", "baud=%u", decodeSetClock)
	r.Register(OpDisable, "disable", "", decodeDisable)
	r.Register(OpRead, "read", "addr=%u len=%u", decodeRead)
	r.Register(OpWrite, "write", "addr=%u len=%u data=%*s", decodeWrite)
}

var (
	defaultOpsOnce sync.Once
	defaultOps     *OpRegistry
)

// DefaultOps returns the shared registry holding the bus-master operations.
func DefaultOps() *OpRegistry {
	defaultOpsOnce.Do(func() {
		defaultOps = NewOpRegistry()
		RegisterI2COps(defaultOps)
	})
	return defaultOps
}

// Decode decodes mb with the default registry.
func Decode(mb Mailbox) (Command, error) {
	return DefaultOps().Decode(mb)
}

func decodeEnable(w Word, mb Mailbox) (Command, error) {
	return EnableCommand{BusID: BusID(w.Sub())}, nil
}

func decodeSetClock(w Word, mb Mailbox) (Command, error) {
	if len(mb) <= SlotAddr {
		return nil, ErrShortMailbox
	}
	return SetClockCommand{BusID: BusID(w.Sub()), Baud: mb[SlotAddr]}, nil
}

func decodeDisable(w Word, mb Mailbox) (Command, error) {
	return DisableCommand{BusID: BusID(w.Sub())}, nil
}

// transferOperands validates the address and length slots shared by read
// and write.
func transferOperands(mb Mailbox) (Address, int, error) {
	if len(mb) <= SlotLength {
		return 0, 0, ErrShortMailbox
	}
	addr := mb[SlotAddr]
	if addr > 0x7F {
		return 0, 0, ErrInvalidAddress
	}
	n := mb[SlotLength]
	if n == 0 || n > MaxTransfer || uint64(n) > uint64(len(mb)-SlotData)*4 {
		return 0, 0, ErrInvalidLength
	}
	return Address(addr), int(n), nil
}

func decodeRead(w Word, mb Mailbox) (Command, error) {
	addr, n, err := transferOperands(mb)
	if err != nil {
		return nil, err
	}
	return ReadCommand{BusID: BusID(w.Sub()), Addr: addr, Len: n}, nil
}

func decodeWrite(w Word, mb Mailbox) (Command, error) {
	addr, n, err := transferOperands(mb)
	if err != nil {
		return nil, err
	}
	return WriteCommand{
		BusID: BusID(w.Sub()),
		Addr:  addr,
		Data:  UnpackBytes(mb[SlotData:], n),
	}, nil
}

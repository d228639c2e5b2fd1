package core

import "errors"

// MailboxWords is the size of the shared command block in 32-bit words.
const MailboxWords = 256

// Mailbox slots.
const (
	SlotCommand = 0 // packed command word
	SlotAddr    = 1 // address or baud in, status out
	SlotLength  = 2 // transfer length in bytes
	SlotData    = 3 // first data word
)

// MaxTransfer is the largest transfer a full-size mailbox can carry.
const MaxTransfer = (MailboxWords - SlotData) * 4

// Command word layout: device id in bits 31..24, operation code in bits
// 23..12, sub-index in bits 11..0.
const (
	wordDevShift = 24
	wordOpShift  = 12
	wordOpMask   = 0xFFF
	wordSubMask  = 0xFFF
)

// Mailbox status values written back into SlotAddr.
const (
	StatusOK         uint32 = 0
	StatusOutOfRange uint32 = 0xFFFFFFFF // -1
	StatusNack       uint32 = 0xFFFFFFFE // -2
	StatusTimeout    uint32 = 0xFFFFFFFD // -3
	StatusInvalid    uint32 = 0xFFFFFFFC // -4
)

var (
	ErrShortMailbox = errors.New("mailbox: too short for command")
	ErrLongMailbox  = errors.New("mailbox: block larger than the mailbox")
	ErrUnknownOp    = errors.New("mailbox: unknown operation")

	// ErrInvalidCommand is what a remote caller sees for StatusInvalid.
	ErrInvalidCommand = errors.New("mailbox: invalid command")
)

// Mailbox is a shared command block. The first word is the command word,
// the rest are operands that results overwrite in place.
type Mailbox []uint32

// Word is a packed command word.
type Word uint32

// CommandWord packs an operation code and sub-index.
func CommandWord(op Op, sub uint32) Word {
	return Word((uint32(op)&wordOpMask)<<wordOpShift | sub&wordSubMask)
}

// WithDevice sets the device id byte.
func (w Word) WithDevice(dev uint8) Word {
	return w&^(0xFF<<wordDevShift) | Word(dev)<<wordDevShift
}

// Device returns the device id byte. The dispatcher does not interpret it.
func (w Word) Device() uint8 {
	return uint8(w >> wordDevShift)
}

// Op returns the operation code.
func (w Word) Op() Op {
	return Op(uint32(w) >> wordOpShift & wordOpMask)
}

// Sub returns the sub-index (bus selector).
func (w Word) Sub() uint32 {
	return uint32(w) & wordSubMask
}

// PackBytes stores p little-endian into words, four bytes per word. Bytes
// of a partially filled last word outside p are preserved.
func PackBytes(words []uint32, p []byte) {
	for i, b := range p {
		shift := uint(i%4) * 8
		w := &words[i/4]
		*w = *w&^(0xFF<<shift) | uint32(b)<<shift
	}
}

// UnpackBytes extracts n bytes packed by PackBytes.
func UnpackBytes(words []uint32, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(words[i/4] >> (uint(i%4) * 8))
	}
	return p
}

// WordsFor returns how many words hold n packed bytes.
func WordsFor(n int) int {
	return (n + 3) / 4
}

// StatusOf maps a driver error to the mailbox status value.
func StatusOf(err error) uint32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrOutOfRange):
		return StatusOutOfRange
	case errors.Is(err, ErrNack):
		return StatusNack
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusInvalid
	}
}

// ErrorOf maps a mailbox status value back to an error. The phase of a
// NACK is not carried by the status, so ErrNack is returned for both.
func ErrorOf(status uint32) error {
	switch status {
	case StatusOK:
		return nil
	case StatusOutOfRange:
		return ErrOutOfRange
	case StatusNack:
		return ErrNack
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrInvalidCommand
	}
}

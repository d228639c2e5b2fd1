// Package protocol frames mailbox blocks for a byte stream. A frame is
//
//	[len_hi][len_lo][seq] payload [crc_hi][crc_lo][0x7E]
//
// where len counts the whole frame, seq is 0x10 with a 4-bit counter, the
// CRC covers header and payload, and the payload is a VLQ word count
// followed by that many VLQ-encoded 32-bit words.
package protocol

// Version is the wire protocol revision reported by the daemon.
const Version = "1"

const (
	MessageMax = 2048 // largest frame and scratch buffer size

	// Message sequence masks
	MessageSeqMask = 0x0F
	MessageDest    = 0x10
)

// Block is one decoded frame.
type Block struct {
	Sequence uint8
	Words    []uint32
}

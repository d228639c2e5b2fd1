package protocol

import "errors"

const (
	MessageHeaderSize  = 3
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = MessageMax
	MessagePositionLen = 0
	MessagePositionSeq = 2
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// MaxBlockWords bounds the word count a frame may declare: a full
	// mailbox plus a few words of reply trailer.
	MaxBlockWords = 260
)

var (
	// ErrIncomplete means more bytes are needed before the frame can be judged.
	ErrIncomplete = errors.New("protocol: incomplete frame")

	ErrFrameLength   = errors.New("protocol: bad frame length")
	ErrFrameSequence = errors.New("protocol: bad sequence byte")
	ErrFrameSync     = errors.New("protocol: missing sync byte")
	ErrFrameCRC      = errors.New("protocol: CRC mismatch")
	ErrFramePayload  = errors.New("protocol: malformed payload")
	ErrFrameTooLarge = errors.New("protocol: block does not fit in a frame")
)

// NextSequence advances a sequence byte, keeping the destination bits.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// EncodeFrame appends a complete frame carrying words to output.
func EncodeFrame(output OutputBuffer, seq uint8, words []uint32) error {
	if len(words) > MaxBlockWords {
		return ErrFrameTooLarge
	}
	cursor := output.CurPosition()
	output.Output([]byte{0, 0, seq})
	EncodeVLQWords(output, words)

	msgLen := len(output.DataSince(cursor)) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return ErrFrameTooLarge
	}
	output.Update(cursor+MessagePositionLen, uint8(msgLen>>8))
	output.Update(cursor+MessagePositionLen+1, uint8(msgLen))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
	return nil
}

// AppendFrame is EncodeFrame into a fresh byte slice.
func AppendFrame(seq uint8, words []uint32) ([]byte, error) {
	out := NewScratchOutput()
	if err := EncodeFrame(out, seq, words); err != nil {
		return nil, err
	}
	frame := make([]byte, len(out.Result()))
	copy(frame, out.Result())
	return frame, nil
}

// DecodeFrame parses the frame at the start of data and returns it with the
// number of bytes it occupies. ErrIncomplete asks for more input; any other
// error means the stream must be resynchronized.
func DecodeFrame(data []byte) (Block, int, error) {
	if len(data) < MessageHeaderSize {
		return Block{}, 0, ErrIncomplete
	}

	msgLen := int(data[MessagePositionLen])<<8 | int(data[MessagePositionLen+1])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Block{}, 0, ErrFrameLength
	}

	seq := data[MessagePositionSeq]
	if seq&^MessageSeqMask != MessageDest {
		return Block{}, 0, ErrFrameSequence
	}

	if len(data) < msgLen {
		return Block{}, 0, ErrIncomplete
	}

	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Block{}, 0, ErrFrameSync
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Block{}, 0, ErrFrameCRC
	}

	payload := data[MessageHeaderSize : msgLen-MessageTrailerSize]
	words, err := DecodeVLQWords(&payload, MaxBlockWords)
	if err != nil || len(payload) != 0 {
		return Block{}, 0, ErrFramePayload
	}
	return Block{Sequence: seq, Words: words}, msgLen, nil
}

package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// EncodeVLQInt writes v most significant group first, seven bits per byte.
// Small negative values stay short.
func EncodeVLQInt(output OutputBuffer, v int32) {
	if !(-(1<<26) <= v && v < (3<<26)) {
		output.Output([]byte{byte((v>>28)&0x7F) | 0x80})
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		output.Output([]byte{byte((v>>21)&0x7F) | 0x80})
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		output.Output([]byte{byte((v>>14)&0x7F) | 0x80})
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		output.Output([]byte{byte((v>>7)&0x7F) | 0x80})
	}
	output.Output([]byte{byte(v & 0x7F)})
}

// EncodeVLQUint encodes v through the signed form, so status words such as
// 0xFFFFFFFE take a single byte.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes one value and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if (c & 0x60) == 0x60 {
		v |= ^uint32(0x1F)
	}

	for n := 1; c&0x80 != 0; n++ {
		if n == 5 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
	}

	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// EncodeVLQWords writes a word count followed by the words.
func EncodeVLQWords(output OutputBuffer, words []uint32) {
	EncodeVLQUint(output, uint32(len(words)))
	for _, w := range words {
		EncodeVLQUint(output, w)
	}
}

// DecodeVLQWords reads a count-prefixed word list. The count is checked
// against limit before any allocation.
func DecodeVLQWords(data *[]byte, limit int) ([]uint32, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	// Each word takes at least one byte.
	if int64(n) > int64(limit) || int(n) > len(*data) {
		return nil, ErrInvalidVLQ
	}
	words := make([]uint32, n)
	for i := range words {
		if words[i], err = DecodeVLQUint(data); err != nil {
			return nil, err
		}
	}
	return words, nil
}

package core

// Formatting helpers for debug output that avoid pulling fmt into firmware
// builds.

const hexDigits = "0123456789abcdef"

// itoa converts an integer to a decimal string.
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a decimal string.
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// hex8 formats a byte as two lowercase hex digits.
func hex8(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}

// hex32 formats a word as eight lowercase hex digits.
func hex32(v uint32) string {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[v&0x0F]
		v >>= 4
	}
	return string(buf[:])
}

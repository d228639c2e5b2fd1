package protocol

// CRC16 returns the frame checksum (CCITT polynomial, reflected update,
// initial value 0xFFFF) over data.
func CRC16(data []byte) uint16 {
	return crc16Update(0xFFFF, data)
}

func crc16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

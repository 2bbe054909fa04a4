package telegram

// CRC16 continues a CRC-16/ARC computation from seed over data.
// Bit-serial form of the reflected 0x8005 polynomial, no final xor, as used by DSMR meters.
func CRC16(seed uint16, data []byte) uint16 {
	crc := seed
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

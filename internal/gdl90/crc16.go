package gdl90

// The framing layer seals each message with CRC-CCITT: polynomial 0x1021,
// zero seed, fed MSB-first over the message ID and payload. The two trailer
// bytes are excluded from their own computation.

var crcTable = buildCRCTable(0x1021)

func buildCRCTable(poly uint16) [256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			msb := crc&0x8000 != 0
			crc <<= 1
			if msb {
				crc ^= poly
			}
		}
		table[i] = crc
	}
	return table
}

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crcTable[crc>>8] ^ (crc << 8) ^ uint16(b)
	}
	return crc
}

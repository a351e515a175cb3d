package gdl90

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20
)

// Frame prepares a message (ID byte plus payload) for the wire: the CRC16
// trailer goes on low byte first, every flag or escape byte in the body is
// stuffed, and the whole thing is delimited with 0x7E flags.
func Frame(message []byte) []byte {
	crc := crc16(message)

	// Worst case every byte needs stuffing.
	out := make([]byte, 0, 2*len(message)+6)
	out = append(out, flagByte)
	for _, b := range message {
		out = appendStuffed(out, b)
	}
	out = appendStuffed(out, byte(crc))
	out = appendStuffed(out, byte(crc>>8))
	return append(out, flagByte)
}

func appendStuffed(out []byte, b byte) []byte {
	if b == flagByte || b == escapeByte {
		return append(out, escapeByte, b^escapeXor)
	}
	return append(out, b)
}

// Deframe extracts every CRC-valid GDL90 message from a raw UDP datagram.
//
// Frames are delimited by 0x7E flags; the body is de-escaped, and the
// trailing little-endian CRC16 is checked against the unescaped message.
// Frames that are too short, contain a truncated escape, or fail the CRC are
// dropped without affecting subsequent frames. An incomplete tail (an opening
// flag with no closing flag) is dropped as well: framing never spans
// datagrams.
//
// Each returned message is the unescaped message ID byte plus payload, with
// the CRC stripped.
func Deframe(datagram []byte) [][]byte {
	var msgs [][]byte

	i := 0
	for {
		// Find the opening flag.
		for i < len(datagram) && datagram[i] != flagByte {
			i++
		}
		if i >= len(datagram)-1 {
			return msgs
		}
		start := i + 1

		// Find the closing flag.
		end := start
		for end < len(datagram) && datagram[end] != flagByte {
			end++
		}
		if end >= len(datagram) {
			// Incomplete tail.
			return msgs
		}

		if msg, ok := unescapeAndCheck(datagram[start:end]); ok {
			msgs = append(msgs, msg)
		}

		// The closing flag may open the next frame.
		i = end
	}
}

// unescapeAndCheck de-escapes a frame body (flags excluded) and validates the
// trailing CRC. Returns the message without the CRC.
func unescapeAndCheck(body []byte) ([]byte, bool) {
	raw := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == escapeByte {
			i++
			if i >= len(body) {
				return nil, false
			}
			raw = append(raw, body[i]^escapeXor)
			continue
		}
		raw = append(raw, b)
	}

	// Need at least a message ID and a 2-byte CRC.
	if len(raw) < 3 {
		return nil, false
	}

	msg := raw[:len(raw)-2]
	crcGot := uint16(raw[len(raw)-2]) | (uint16(raw[len(raw)-1]) << 8)
	return msg, crcGot == crc16(msg)
}

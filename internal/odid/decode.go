package odid

import (
	"encoding/binary"
	"strings"
)

// Unit conversions between the wire units (metric) and the track units.
const (
	metersToFeet = 3.28084
	msToKnots    = 1.94384
	msToFpm      = 196.85
)

// Decode turns an ODID message record into a decoded Message. The input must
// be at least 25 bytes; a Message Pack may be longer. Truncated input and
// Auth/unknown message types yield nil. Decoding is total: values outside a
// lookup table's range map to an "unknown" label rather than failing.
func Decode(data []byte) Message {
	if len(data) < MessageLen {
		return nil
	}

	switch data[0] >> 4 { // low nibble is the protocol version; not dispatched on
	case typeBasicID:
		return decodeBasicID(data)
	case typeLocation:
		return decodeLocation(data)
	case typeSelfID:
		return decodeSelfID(data)
	case typeSystem:
		return decodeSystem(data)
	case typeOperatorID:
		return decodeOperatorID(data)
	case typePack:
		return decodePack(data)
	default:
		return nil
	}
}

func decodeBasicID(b []byte) Message {
	return BasicID{
		IDType:  idTypeLabel(b[1] >> 4),
		UASType: uasTypeLabel(b[1] & 0x0F),
		UAID:    cleanASCII(b[2:22]),
	}
}

func decodeLocation(b []byte) Message {
	status := b[1]
	loc := Location{
		OperationalStatus:  operationalStatusLabel(status >> 4),
		HeightAboveTakeoff: status&0x04 == 0,
	}

	// Bit 0 of the status byte selects the speed multiplier.
	speedMult := 0.25
	if status&0x01 != 0 {
		speedMult = 0.75
	}

	if heading := float64(b[2]); heading <= 360 {
		loc.HeadingDeg = &heading
	}

	if b[3] != 255 {
		kt := float64(b[3]) * speedMult * msToKnots
		loc.SpeedKt = &kt
	}

	if b[4] != 0x80 {
		fpm := float64(int8(b[4])) * 0.5 * msToFpm
		loc.VertRateFpm = &fpm
	}

	loc.Lat = decodeLatLon(b[5:9])
	loc.Lon = decodeLatLon(b[9:13])

	// Geodetic altitude is preferred over pressure altitude for display.
	pressAlt := decodeAltitude(b[13:15])
	geoAlt := decodeAltitude(b[15:17])
	switch {
	case geoAlt != nil:
		loc.AltFeet = geoAlt
	case pressAlt != nil:
		loc.AltFeet = pressAlt
	}

	return loc
}

func decodeSystem(b []byte) Message {
	sys := System{
		RIDType:              RIDTypeStandard,
		OperatorLocationType: int(b[1] & 0x03),
		Lat:                  decodeLatLon(b[2:6]),
		Lon:                  decodeLatLon(b[6:10]),
		AltFeet:              decodeAltitude(b[17:19]),
	}
	if b[1]>>4 == 2 {
		sys.RIDType = RIDTypeBroadcastModule
	}
	return sys
}

func decodeSelfID(b []byte) Message {
	return SelfID{Description: cleanASCII(b[2:25])}
}

func decodeOperatorID(b []byte) Message {
	return OperatorID{ID: cleanASCII(b[2:22])}
}

func decodePack(b []byte) Message {
	count := int(b[1])
	if count > MaxPackMessages {
		count = MaxPackMessages
	}

	pack := Pack{}
	for i := 0; i < count; i++ {
		start := 2 + i*MessageLen
		end := start + MessageLen
		if end > len(b) {
			break
		}
		if msg := Decode(b[start:end]); msg != nil {
			pack.Messages = append(pack.Messages, msg)
		}
	}
	return pack
}

// decodeLatLon converts a signed 32-bit little-endian 1e-7 degree value.
func decodeLatLon(b []byte) float64 {
	return float64(int32(binary.LittleEndian.Uint32(b))) * 1e-7
}

// decodeAltitude converts the encoded altitude (0.5 m resolution, -1000 m
// offset) to feet. 0xFFFF means unknown.
func decodeAltitude(b []byte) *float64 {
	raw := binary.LittleEndian.Uint16(b)
	if raw == 0xFFFF {
		return nil
	}
	ft := (float64(raw)*0.5 - 1000) * metersToFeet
	return &ft
}

// cleanASCII strips non-printable bytes and trims surrounding whitespace and
// NUL padding.
func cleanASCII(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

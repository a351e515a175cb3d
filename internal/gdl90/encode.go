package gdl90

import (
	"encoding/hex"
	"fmt"
	"math"
)

// Encoders for the message types the decoder understands. These exist for
// loopback testing and simulated traffic feeds; the relay itself only
// consumes GDL90.

// HeartbeatFrame builds and frames a GDL90 Heartbeat (0x00).
func HeartbeatFrame(hb Heartbeat) []byte {
	msg := make([]byte, 7)
	msg[0] = MsgIDHeartbeat

	var status byte
	if hb.GPSValid {
		status |= 0x80
	}
	if hb.MaintenanceRequired {
		status |= 0x40
	}
	if hb.UATInitialized {
		status |= 0x01
	}
	msg[1] = status

	return Frame(msg)
}

// ReportFrame builds and frames an Ownship (0x0A) or Traffic (0x14) report
// from a decoded Report. Nil optional fields encode as the respective
// invalid sentinels.
func ReportFrame(r Report) []byte {
	msg := make([]byte, 28)
	if r.Ownship {
		msg[0] = MsgIDOwnship
	} else {
		msg[0] = MsgIDTraffic
	}

	icao, err := ParseICAOHex(r.ICAO)
	if err == nil {
		msg[2], msg[3], msg[4] = icao[0], icao[1], icao[2]
	}

	lat := encodeLatLon24(r.Lat)
	msg[5], msg[6], msg[7] = lat[0], lat[1], lat[2]
	lon := encodeLatLon24(r.Lon)
	msg[8], msg[9], msg[10] = lon[0], lon[1], lon[2]

	alt := uint16(0xFFF)
	if r.AltFeet != nil {
		alt = encodeAltitude12(*r.AltFeet)
	}
	msg[11] = byte(alt >> 4)
	msg[12] = byte(alt&0x0F) << 4

	// Misc nibble: true track valid, airborne per flag.
	msg[12] |= 0x01
	if !r.OnGround {
		msg[12] |= 0x08
	}

	spd := uint16(0xFFF)
	if r.SpeedKt != nil {
		spd = encodeU12(*r.SpeedKt)
	}
	msg[14] = byte(spd >> 4)
	msg[15] = byte(spd&0x0F) << 4

	vvel := uint16(0x800)
	if r.VertRateFpm != nil {
		vv := int32(math.Round(float64(*r.VertRateFpm) / 64.0))
		if vv > 2047 {
			vv = 2047
		} else if vv < -2047 {
			vv = -2047
		}
		vvel = uint16(vv) & 0x0FFF
	}
	msg[15] |= byte(vvel >> 8)
	msg[16] = byte(vvel & 0xFF)

	msg[17] = byte(int(math.Round(r.TrackDeg/trackResolution)) & 0xFF) // wraps at 360

	var emitter byte
	for code, label := range emitterCategories {
		if label == r.Emitter {
			emitter = byte(code)
			break
		}
	}
	msg[18] = emitter

	callsign := r.Callsign
	if len(callsign) > 8 {
		callsign = callsign[:8]
	}
	copy(msg[19:27], []byte(fmt.Sprintf("%-8s", callsign)))

	return Frame(msg)
}

// GeoAltitudeFrame builds and frames an Ownship Geometric Altitude (0x0B).
func GeoAltitudeFrame(g GeoAltitude) []byte {
	msg := make([]byte, 5)
	msg[0] = MsgIDOwnshipGeoAlt
	raw := int16(g.AltFeet / 5)
	msg[1] = byte(uint16(raw) >> 8)
	msg[2] = byte(uint16(raw) & 0xFF)
	// Vertical metrics not modeled; left zero.
	return Frame(msg)
}

// ParseICAOHex parses a 6-hex-digit ICAO address.
func ParseICAOHex(s string) ([3]byte, error) {
	var icao [3]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return icao, fmt.Errorf("invalid ICAO address %q: %w", s, err)
	}
	if len(b) != 3 {
		return icao, fmt.Errorf("invalid ICAO address %q: need 24 bits", s)
	}
	copy(icao[:], b)
	return icao, nil
}

func encodeLatLon24(deg float64) [3]byte {
	raw := int32(math.Round(deg / latLonResolution))
	if raw > 0x7FFFFF {
		raw = 0x7FFFFF
	} else if raw < -0x800000 {
		raw = -0x800000
	}
	u := uint32(raw) & 0xFFFFFF
	return [3]byte{byte(u >> 16), byte(u >> 8), byte(u)}
}

func encodeAltitude12(feet int) uint16 {
	raw := (feet + 1000) / 25
	if raw < 0 {
		raw = 0
	}
	if raw > 0xFFE {
		raw = 0xFFE
	}
	return uint16(raw)
}

func encodeU12(v int) uint16 {
	if v < 0 {
		v = 0
	}
	if v > 0xFFE {
		v = 0xFFE
	}
	return uint16(v)
}

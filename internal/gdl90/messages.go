package gdl90

import (
	"fmt"
	"strings"
)

// GDL90 message IDs handled by the decoder.
const (
	MsgIDHeartbeat     = 0x00
	MsgIDOwnship       = 0x0A
	MsgIDOwnshipGeoAlt = 0x0B
	MsgIDTraffic       = 0x14
)

const (
	latLonResolution = 180.0 / 8388608.0 // degrees per LSB for signed 24-bit
	trackResolution  = 360.0 / 256.0
)

// Heartbeat is a decoded GDL90 Heartbeat (0x00) status message.
type Heartbeat struct {
	GPSValid            bool
	MaintenanceRequired bool
	UATInitialized      bool
}

// Report is a decoded Ownship (0x0A) or Traffic (0x14) report.
type Report struct {
	Ownship  bool
	ICAO     string // 6 hex digits, upper case
	Callsign string
	Lat      float64
	Lon      float64
	// AltFeet is nil when the altitude field carries the invalid sentinel.
	AltFeet *int
	// TrackDeg is the true track in degrees.
	TrackDeg float64
	// SpeedKt is nil when the horizontal velocity field is invalid.
	SpeedKt *int
	// VertRateFpm is nil when the vertical velocity field is invalid.
	VertRateFpm *int
	Emitter     string
	OnGround    bool
}

// GeoAltitude is a decoded Ownship Geometric Altitude (0x0B) message.
type GeoAltitude struct {
	AltFeet int
}

// Message is the closed set of decoded GDL90 messages. Decode returns nil
// for message IDs outside this set.
type Message interface {
	gdl90Message()
}

func (Heartbeat) gdl90Message()   {}
func (Report) gdl90Message()      {}
func (GeoAltitude) gdl90Message() {}

// emitterCategories is the GDL90 ICD emitter category table. Codes without an
// assignment decode as "Unknown".
var emitterCategories = [22]string{
	0:  "Unknown",
	1:  "Light",
	2:  "Small",
	3:  "Large",
	4:  "High Vortex Large",
	5:  "Heavy",
	6:  "Highly Maneuverable",
	7:  "Rotorcraft",
	9:  "Glider",
	10: "Lighter Than Air",
	11: "Parachutist",
	12: "Ultralight",
	14: "UAV",
	15: "Spacecraft",
	17: "Surface Vehicle - Emergency",
	18: "Surface Vehicle - Service",
	19: "Point Obstacle",
	20: "Cluster Obstacle",
	21: "Line Obstacle",
}

// EmitterCategory maps a raw emitter category code to its label.
func EmitterCategory(code byte) string {
	if int(code) < len(emitterCategories) && emitterCategories[code] != "" {
		return emitterCategories[code]
	}
	return "Unknown"
}

// Decode turns an unframed, CRC-validated message (as returned by Deframe)
// into one of the decoded message types. Unknown message IDs and under-length
// payloads yield nil: on a live broadcast stream these are routine, not
// errors.
func Decode(msg []byte) Message {
	if len(msg) == 0 {
		return nil
	}
	switch msg[0] {
	case MsgIDHeartbeat:
		return decodeHeartbeat(msg)
	case MsgIDOwnship, MsgIDTraffic:
		return decodeReport(msg)
	case MsgIDOwnshipGeoAlt:
		return decodeGeoAltitude(msg)
	default:
		return nil
	}
}

func decodeHeartbeat(msg []byte) Message {
	// ID byte plus at least 3 status/timestamp bytes.
	if len(msg) < 4 {
		return nil
	}
	status := msg[1]
	return Heartbeat{
		GPSValid:            status&0x80 != 0,
		MaintenanceRequired: status&0x40 != 0,
		UATInitialized:      status&0x01 != 0,
	}
}

func decodeReport(msg []byte) Message {
	if len(msg) < 28 {
		return nil
	}

	r := Report{
		Ownship: msg[0] == MsgIDOwnship,
		ICAO:    fmt.Sprintf("%02X%02X%02X", msg[2], msg[3], msg[4]),
		Lat:     decodeLatLon24(msg[5], msg[6], msg[7]),
		Lon:     decodeLatLon24(msg[8], msg[9], msg[10]),
	}

	// 12-bit altitude: high byte plus high nibble of msg[12]. 0xFFF = invalid,
	// else 25 ft resolution offset by -1000.
	altRaw := (uint16(msg[11]) << 4) | (uint16(msg[12]) >> 4)
	if altRaw != 0xFFF {
		alt := int(altRaw)*25 - 1000
		r.AltFeet = &alt
	}

	// Misc indicator nibble: bit 3 = airborne.
	r.OnGround = msg[12]&0x08 == 0

	// 12-bit horizontal velocity in knots, 0xFFF = invalid.
	hvRaw := (uint16(msg[14]) << 4) | (uint16(msg[15]) >> 4)
	if hvRaw != 0xFFF {
		spd := int(hvRaw)
		r.SpeedKt = &spd
	}

	// 12-bit signed vertical velocity, 64 fpm resolution, 0x800 = invalid.
	vvRaw := (uint16(msg[15]&0x0F) << 8) | uint16(msg[16])
	if vvRaw != 0x800 {
		vv := int(int16(vvRaw<<4) >> 4) // sign-extend 12 bits
		fpm := vv * 64
		r.VertRateFpm = &fpm
	}

	r.TrackDeg = float64(msg[17]) * trackResolution
	r.Emitter = EmitterCategory(msg[18])
	r.Callsign = sanitizeCallsign(string(msg[19:27]))

	return r
}

func decodeGeoAltitude(msg []byte) Message {
	if len(msg) < 5 {
		return nil
	}
	raw := int16(uint16(msg[1])<<8 | uint16(msg[2]))
	return GeoAltitude{AltFeet: int(raw) * 5}
}

// decodeLatLon24 converts a signed 24-bit big-endian semicircle value to
// degrees.
func decodeLatLon24(b0, b1, b2 byte) float64 {
	raw := int32(uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2))
	if raw&0x800000 != 0 {
		raw -= 0x1000000
	}
	return float64(raw) * latLonResolution
}

// sanitizeCallsign drops non-printable bytes and trims surrounding whitespace.
func sanitizeCallsign(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7F {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// Package odid decodes ASTM F3411-22a Open Drone ID broadcast messages.
package odid

// MessageLen is the fixed length of a single ODID message record.
const MessageLen = 25

// Message type codes (high nibble of byte 0).
const (
	typeBasicID    = 0x0
	typeLocation   = 0x1
	typeAuth       = 0x2
	typeSelfID     = 0x3
	typeSystem     = 0x4
	typeOperatorID = 0x5
	typePack       = 0xF
)

// MaxPackMessages caps the sub-message count of a Message Pack regardless of
// what the count field claims.
const MaxPackMessages = 9

// Message is the closed set of decoded ODID messages.
type Message interface {
	odidMessage()
}

// BasicID carries the UA identity.
type BasicID struct {
	IDType  string
	UASType string
	UAID    string
}

// Location carries position and kinematics.
type Location struct {
	OperationalStatus string
	// HeightAboveTakeoff reports the height-type flag: the encoded height is
	// relative to the takeoff point when set, to ground level otherwise.
	HeightAboveTakeoff bool
	// HeadingDeg is nil when the heading field is out of range.
	HeadingDeg *float64
	// SpeedKt is the horizontal speed in knots, nil when unknown.
	SpeedKt *float64
	// VertRateFpm is the vertical rate in feet per minute, nil when unknown.
	VertRateFpm *float64
	Lat         float64
	Lon         float64
	// AltFeet is the displayed altitude in feet: geodetic when present, else
	// pressure. Nil when both carry the unknown sentinel.
	AltFeet *float64
}

// System carries the operator-or-takeoff location and RID system type.
type System struct {
	// RIDType is "standard" (operator-broadcasting) or "broadcastModule"
	// (takeoff-point-broadcasting).
	RIDType              string
	OperatorLocationType int
	Lat                  float64
	Lon                  float64
	// AltFeet is the operator/takeoff altitude in feet, nil when unknown.
	AltFeet *float64
}

// SelfID carries the free-text flight description.
type SelfID struct {
	Description string
}

// OperatorID carries the operator registration identifier.
type OperatorID struct {
	ID string
}

// Pack is a Message Pack: up to MaxPackMessages decoded sub-messages.
type Pack struct {
	Messages []Message
}

func (BasicID) odidMessage()    {}
func (Location) odidMessage()   {}
func (System) odidMessage()     {}
func (SelfID) odidMessage()     {}
func (OperatorID) odidMessage() {}
func (Pack) odidMessage()       {}

// RID system types reported by the System message.
const (
	RIDTypeStandard        = "standard"
	RIDTypeBroadcastModule = "broadcastModule"
)

var idTypes = [5]string{
	"none",
	"serialNumber",
	"registrationId",
	"utmAssigned",
	"specificSessionId",
}

var uasTypes = [16]string{
	"none",
	"aeroplane",
	"helicopterOrMultirotor",
	"gyroplane",
	"hybridLift",
	"ornithopter",
	"glider",
	"kite",
	"freeBalloon",
	"captiveBalloon",
	"airship",
	"freeFallParachute",
	"rocket",
	"tetheredPoweredAircraft",
	"groundObstacle",
	"other",
}

var operationalStatuses = [5]string{
	"undeclared",
	"ground",
	"airborne",
	"emergency",
	"remoteIdSystemFailure",
}

// Values outside a table's range fall back to this label instead of failing.
const unknownLabel = "unknown"

func idTypeLabel(code byte) string {
	if int(code) < len(idTypes) {
		return idTypes[code]
	}
	return unknownLabel
}

func uasTypeLabel(code byte) string {
	if int(code) < len(uasTypes) {
		return uasTypes[code]
	}
	return unknownLabel
}

func operationalStatusLabel(code byte) string {
	if int(code) < len(operationalStatuses) {
		return operationalStatuses[code]
	}
	return unknownLabel
}

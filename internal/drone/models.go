package drone

import "time"

// Broadcast source classifications for decoded Remote ID traffic.
const (
	SourceBluetoothLegacy    = "bluetooth5Legacy"
	SourceBluetoothLongRange = "bluetooth5LongRange"
	SourceWiFi               = "wifi"
	SourceParsed             = "parsed"
)

// Track is the visible drone track, re-derived from the full accumulated
// message set on every update. Field names follow the Remote ID push channel
// wire format.
type Track struct {
	ID                string     `json:"id"`
	IDType            string     `json:"idType,omitempty"`
	UASType           string     `json:"uasType,omitempty"`
	SerialNumber      string     `json:"serialNumber,omitempty"` // serial/session/registration id from Basic ID
	Description       string     `json:"description,omitempty"`
	OperatorID        string     `json:"operatorId,omitempty"`
	Lat               *float64   `json:"lat,omitempty"`
	Lon               *float64   `json:"lon,omitempty"`
	AltFt             *float64   `json:"altFt,omitempty"`
	HeadingDeg        *float64   `json:"heading,omitempty"`
	SpeedKt           *float64   `json:"speedKt,omitempty"`
	VertRateFpm       *float64   `json:"vertRateFpm,omitempty"`
	OperationalStatus string     `json:"operationalStatus,omitempty"`
	RIDType           string     `json:"ridType,omitempty"` // "standard" or "broadcastModule"
	OperatorLat       *float64   `json:"operatorLat,omitempty"`
	OperatorLon       *float64   `json:"operatorLon,omitempty"`
	OperatorAltFt     *float64   `json:"operatorAltFt,omitempty"`
	TakeoffLat        *float64   `json:"takeoffLat,omitempty"`
	TakeoffLon        *float64   `json:"takeoffLon,omitempty"`
	TakeoffAltFt      *float64   `json:"takeoffAltFt,omitempty"`
	Source            string     `json:"source,omitempty"`
	RSSI              *int       `json:"rssi,omitempty"`
	LastSeen          time.Time  `json:"lastSeen"`
}

// Snapshot is an immutable point-in-time projection of the drone store.
type Snapshot struct {
	Type          string   `json:"type"`      // always "rid-snapshot"
	Timestamp     int64    `json:"timestamp"` // epoch milliseconds
	Drones        []*Track `json:"drones"`
	Count         int      `json:"count"`
	Scanning      bool     `json:"scanning"`
	BLEAvailable  bool     `json:"bleAvailable"`
	WiFiAvailable bool     `json:"wifiAvailable"`
}

// SnapshotType is the discriminator for drone snapshots on the push channel.
const SnapshotType = "rid-snapshot"

// Status is the response body for GET /api/rid/status.
type Status struct {
	Scanning      bool `json:"scanning"`
	BLEAvailable  bool `json:"bleAvailable"`
	WiFiAvailable bool `json:"wifiAvailable"`
	DroneCount    int  `json:"droneCount"`
}

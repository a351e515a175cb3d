package aircraft

import "time"

// Track is a normalized aircraft track built from GDL90 Ownship/Traffic
// reports. Reports are self-contained, so each decoded report replaces the
// stored track for its ICAO key outright.
type Track struct {
	Hex         string    `json:"hex"` // 24-bit ICAO address as 6 hex digits
	Callsign    string    `json:"callsign,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	AltFeet     *int      `json:"alt_ft,omitempty"`
	TrackDeg    float64   `json:"track"`
	TrackMagDeg *float64  `json:"track_mag,omitempty"` // true track corrected for WMM declination
	SpeedKt     *int      `json:"speed_kt,omitempty"`
	VertRateFpm *int      `json:"vert_rate_fpm,omitempty"`
	Category    string    `json:"category"`
	OnGround    bool      `json:"on_ground"`
	LastSeen    time.Time `json:"last_seen"`
}

// Snapshot is an immutable point-in-time projection of the aircraft store,
// recomputed each publish cycle.
type Snapshot struct {
	Type              string   `json:"type"`      // always "snapshot"
	Timestamp         int64    `json:"timestamp"` // epoch milliseconds
	Aircraft          []*Track `json:"aircraft"`
	Ownship           *Track   `json:"ownship,omitempty"`
	Count             int      `json:"count"`
	GPSValid          bool     `json:"gpsValid"`
	ReceiverConnected bool     `json:"receiverConnected"`
}

// SnapshotType is the discriminator for aircraft snapshots on the push
// channel.
const SnapshotType = "snapshot"

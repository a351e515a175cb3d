package aircraft

import (
	"testing"
	"time"

	"github.com/avbrook/skyrelay/internal/gdl90"
)

func intPtr(v int) *int { return &v }

func testStore() *Store {
	return NewStore(StoreConfig{
		StaleTimeout:    15 * time.Second,
		ReceiverTimeout: 5 * time.Second,
	})
}

func TestStore_ReportReplacesTrack(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	store.Apply(gdl90.Report{ICAO: "A1B2C3", Lat: 37.0, Lon: -79.0, SpeedKt: intPtr(120)}, now)
	store.Apply(gdl90.Report{ICAO: "A1B2C3", Lat: 37.1, Lon: -79.1}, now.Add(time.Second))

	track, ok := store.Get("A1B2C3")
	if !ok {
		t.Fatalf("track missing")
	}
	if track.Lat != 37.1 {
		t.Errorf("lat: got %v, want 37.1", track.Lat)
	}
	// Reports are self-contained: the old speed must not survive.
	if track.SpeedKt != nil {
		t.Errorf("speed from the previous report leaked into the new track")
	}
}

func TestStore_ZeroFixNeverStored(t *testing.T) {
	store := testStore()
	store.Apply(gdl90.Report{ICAO: "ABC123", Lat: 0, Lon: 0}, time.Now().UTC())
	if store.Count() != 0 {
		t.Fatalf("(0,0) sentinel produced a stored track")
	}
}

func TestStore_StalenessPruning(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	store.Apply(gdl90.Report{ICAO: "AAAAAA", Lat: 1, Lon: 1}, now)

	snap := store.Snapshot(now.Add(14900 * time.Millisecond))
	if snap.Count != 1 {
		t.Fatalf("track pruned at 14.9s, want present")
	}

	snap = store.Snapshot(now.Add(15100 * time.Millisecond))
	if snap.Count != 0 {
		t.Fatalf("track still present at 15.1s, want pruned")
	}
}

func TestStore_OwnshipSlot(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	store.Apply(gdl90.Report{Ownship: true, ICAO: "DEADBE", Lat: 43.6, Lon: -79.6}, now)

	snap := store.Snapshot(now)
	if snap.Ownship == nil {
		t.Fatalf("ownship slot empty")
	}
	// Ownship is not traffic.
	if snap.Count != 0 {
		t.Fatalf("ownship leaked into the traffic list")
	}
}

func TestStore_GeoAltitudeUpdatesOwnshipOnly(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	// Geo altitude before any ownship report must not create a track.
	store.Apply(gdl90.GeoAltitude{AltFeet: 3000}, now)
	snap := store.Snapshot(now)
	if snap.Ownship != nil || snap.Count != 0 {
		t.Fatalf("geo altitude created a track by itself")
	}

	store.Apply(gdl90.Report{Ownship: true, ICAO: "DEADBE", Lat: 43.6, Lon: -79.6}, now)
	store.Apply(gdl90.GeoAltitude{AltFeet: 3000}, now)

	snap = store.Snapshot(now)
	if snap.Ownship == nil || snap.Ownship.AltFeet == nil || *snap.Ownship.AltFeet != 3000 {
		t.Fatalf("ownship altitude not updated: %+v", snap.Ownship)
	}
}

func TestStore_GeoAltitudeDoesNotExtendOwnshipLife(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	store.Apply(gdl90.Report{Ownship: true, ICAO: "DEADBE", Lat: 43.6, Lon: -79.6}, now)
	store.Apply(gdl90.GeoAltitude{AltFeet: 3000}, now.Add(10*time.Second))

	// Only position reports count as updates: 15.1s after the last report the
	// ownship is gone even though altitudes kept arriving.
	snap := store.Snapshot(now.Add(15100 * time.Millisecond))
	if snap.Ownship != nil {
		t.Fatalf("geo altitude stream kept a fixless ownship alive: %+v", snap.Ownship)
	}
}

func TestStore_HealthFlags(t *testing.T) {
	store := testStore()
	now := time.Now().UTC()

	snap := store.Snapshot(now)
	if snap.ReceiverConnected {
		t.Fatalf("receiver connected before any datagram")
	}
	if snap.GPSValid {
		t.Fatalf("gps valid before any heartbeat")
	}

	store.MarkReceived(now)
	store.Apply(gdl90.Heartbeat{GPSValid: true}, now)

	snap = store.Snapshot(now.Add(4 * time.Second))
	if !snap.ReceiverConnected {
		t.Fatalf("receiver should count as connected 4s after a datagram")
	}
	if !snap.GPSValid {
		t.Fatalf("gpsValid not set from heartbeat")
	}

	snap = store.Snapshot(now.Add(6 * time.Second))
	if snap.ReceiverConnected {
		t.Fatalf("receiver should count as disconnected 6s after the last datagram")
	}
}

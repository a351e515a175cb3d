package aircraft

import (
	"sort"
	"sync"
	"time"

	"github.com/avbrook/skyrelay/internal/gdl90"
	"github.com/avbrook/skyrelay/internal/physics"
)

// StoreConfig controls track retention and derived fields.
type StoreConfig struct {
	// StaleTimeout controls how long a track is kept without updates.
	StaleTimeout time.Duration
	// ReceiverTimeout is how long after the last UDP datagram the receiver
	// still counts as connected.
	ReceiverTimeout time.Duration
	// MagneticTrack enables deriving the magnetic track from the true track.
	MagneticTrack bool
}

// Store holds the live aircraft tracks plus the single ownship slot. All
// mutation happens under one mutex so read-modify-write merges are atomic
// with respect to concurrent ingestion.
type Store struct {
	mu  sync.RWMutex
	cfg StoreConfig

	tracks       map[string]*Track
	ownship      *Track
	gpsValid     bool
	lastReceived time.Time
}

// NewStore creates an aircraft store with the given retention settings.
func NewStore(cfg StoreConfig) *Store {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 15 * time.Second
	}
	if cfg.ReceiverTimeout <= 0 {
		cfg.ReceiverTimeout = 5 * time.Second
	}
	return &Store{
		cfg:    cfg,
		tracks: make(map[string]*Track),
	}
}

// MarkReceived records that a UDP datagram arrived; drives the
// receiverConnected health flag.
func (s *Store) MarkReceived(now time.Time) {
	s.mu.Lock()
	s.lastReceived = now
	s.mu.Unlock()
}

// Apply merges one decoded GDL90 message into the store.
func (s *Store) Apply(msg gdl90.Message, now time.Time) {
	switch m := msg.(type) {
	case gdl90.Heartbeat:
		s.mu.Lock()
		s.gpsValid = m.GPSValid
		s.mu.Unlock()

	case gdl90.Report:
		// (0,0) is the "no valid fix" sentinel and is never stored.
		if m.Lat == 0 && m.Lon == 0 {
			return
		}
		track := reportToTrack(m, now, s.cfg.MagneticTrack)

		s.mu.Lock()
		if m.Ownship {
			s.ownship = track
		} else {
			s.tracks[m.ICAO] = track
		}
		s.mu.Unlock()

	case gdl90.GeoAltitude:
		// Updates the existing ownship's altitude only; never creates a track
		// and never refreshes its last-seen stamp, so an altitude stream alone
		// can't keep a fixless ownship alive.
		s.mu.Lock()
		if s.ownship != nil {
			alt := m.AltFeet
			s.ownship.AltFeet = &alt
		}
		s.mu.Unlock()
	}
}

// Get returns the track for an ICAO hex key, if present.
func (s *Store) Get(hex string) (*Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[hex]
	return t, ok
}

// Count returns the number of live (non-ownship) tracks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Snapshot prunes stale tracks and returns a point-in-time projection of the
// store. Prune and serialize happen under the same lock so a track can't be
// resurrected mid-snapshot by a concurrent ingest.
func (s *Store) Snapshot(now time.Time) *Snapshot {
	s.mu.Lock()

	cutoff := now.Add(-s.cfg.StaleTimeout)
	for hex, t := range s.tracks {
		if t.LastSeen.Before(cutoff) {
			delete(s.tracks, hex)
		}
	}
	if s.ownship != nil && s.ownship.LastSeen.Before(cutoff) {
		s.ownship = nil
	}

	list := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		copied := *t
		list = append(list, &copied)
	}
	var ownship *Track
	if s.ownship != nil {
		copied := *s.ownship
		ownship = &copied
	}
	gpsValid := s.gpsValid
	connected := !s.lastReceived.IsZero() && now.Sub(s.lastReceived) < s.cfg.ReceiverTimeout

	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Hex < list[j].Hex })

	return &Snapshot{
		Type:              SnapshotType,
		Timestamp:         now.UnixMilli(),
		Aircraft:          list,
		Ownship:           ownship,
		Count:             len(list),
		GPSValid:          gpsValid,
		ReceiverConnected: connected,
	}
}

func reportToTrack(r gdl90.Report, now time.Time, magnetic bool) *Track {
	t := &Track{
		Hex:         r.ICAO,
		Callsign:    r.Callsign,
		Lat:         r.Lat,
		Lon:         r.Lon,
		AltFeet:     r.AltFeet,
		TrackDeg:    r.TrackDeg,
		SpeedKt:     r.SpeedKt,
		VertRateFpm: r.VertRateFpm,
		Category:    r.Emitter,
		OnGround:    r.OnGround,
		LastSeen:    now,
	}

	if magnetic {
		altFt := 0.0
		if r.AltFeet != nil {
			altFt = float64(*r.AltFeet)
		}
		variation := physics.MagneticVariation(r.Lat, r.Lon, altFt, now)
		mag := physics.TrueToMagnetic(r.TrackDeg, variation)
		t.TrackMagDeg = &mag
	}

	return t
}

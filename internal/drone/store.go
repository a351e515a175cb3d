package drone

import (
	"sort"
	"sync"
	"time"

	"github.com/avbrook/skyrelay/internal/odid"
)

// entry accumulates the latest message of each kind for one logical drone. A
// single BLE Legacy advertisement carries only one message type, so the
// visible track is the union of everything seen so far: a newer message of a
// kind replaces the stored one, messages of other kinds are preserved.
type entry struct {
	basicID    *odid.BasicID
	location   *odid.Location
	system     *odid.System
	selfID     *odid.SelfID
	operatorID *odid.OperatorID

	// direct is set for pre-parsed ingest entries that bypass the decoder.
	direct *Track

	source   string
	rssi     *int
	lastSeen time.Time
	track    *Track // derived, refreshed on every update
}

// StoreConfig controls drone track retention.
type StoreConfig struct {
	StaleTimeout time.Duration
}

// Store holds per-identity message accumulators and their derived tracks.
//
// Identity is two-tier: a Basic ID serial/session/registration id is the
// canonical key when known; otherwise the ingestion transport id (BLE
// peripheral address, or a synthetic id) keys the entry. When a Basic ID
// arrives later on the same transport, the entry is re-keyed and the
// transport id persists as an alias so subsequent single-type advertisements
// keep accumulating onto the same logical drone.
type Store struct {
	mu  sync.RWMutex
	cfg StoreConfig

	entries map[string]*entry
	aliases map[string]string // transport key -> canonical key
}

// NewStore creates a drone store with the given retention settings.
func NewStore(cfg StoreConfig) *Store {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 30 * time.Second
	}
	return &Store{
		cfg:     cfg,
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
	}
}

// Ingest merges a batch of decoded messages arriving under one transport key.
// Message Packs are folded into their sub-messages first. Returns the number
// of messages applied.
func (s *Store) Ingest(transportKey string, msgs []odid.Message, source string, rssi *int, now time.Time) int {
	flat := flatten(msgs)
	if len(flat) == 0 {
		return 0
	}

	// A Basic ID anywhere in the batch promotes the UA id to the canonical
	// identity for the whole batch.
	serial := ""
	for _, m := range flat {
		if b, ok := m.(odid.BasicID); ok && b.UAID != "" {
			serial = b.UAID
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, key := s.resolve(transportKey, serial)
	for _, m := range flat {
		switch m := m.(type) {
		case odid.BasicID:
			e.basicID = &m
		case odid.Location:
			e.location = &m
		case odid.System:
			e.system = &m
		case odid.SelfID:
			e.selfID = &m
		case odid.OperatorID:
			e.operatorID = &m
		}
	}
	e.source = source
	if rssi != nil {
		e.rssi = rssi
	}
	e.lastSeen = now
	e.track = derive(key, e)

	return len(flat)
}

// Upsert writes a pre-parsed track directly into the store under the
// caller-supplied id, bypassing the accumulator.
func (s *Store) Upsert(track Track, now time.Time) {
	if track.ID == "" {
		return
	}
	track.LastSeen = now
	if track.Source == "" {
		track.Source = SourceParsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := track.ID
	if canonical, ok := s.aliases[key]; ok {
		key = canonical
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.direct = &track
	e.source = track.Source
	e.rssi = track.RSSI
	e.lastSeen = now
	e.track = derive(key, e)
}

// Get returns the derived track for a canonical or transport key.
func (s *Store) Get(key string) (*Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if canonical, ok := s.aliases[key]; ok {
		key = canonical
	}
	e, ok := s.entries[key]
	if !ok || e.track == nil {
		return nil, false
	}
	copied := *e.track
	return &copied, true
}

// Count returns the number of live drones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot prunes stale entries and returns the live track list sorted by id.
// Health flags are filled in by the caller.
func (s *Store) Snapshot(now time.Time) []*Track {
	s.mu.Lock()

	cutoff := now.Add(-s.cfg.StaleTimeout)
	for key, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, key)
		}
	}
	// Drop aliases whose canonical entry is gone.
	for alias, canonical := range s.aliases {
		if _, ok := s.entries[canonical]; !ok {
			delete(s.aliases, alias)
		}
	}

	list := make([]*Track, 0, len(s.entries))
	for _, e := range s.entries {
		if e.track == nil {
			continue
		}
		copied := *e.track
		list = append(list, &copied)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// resolve finds or creates the accumulator for a transport key, re-keying it
// when a Basic ID supplies the canonical identity. Caller holds the lock.
func (s *Store) resolve(transportKey, serial string) (*entry, string) {
	key := transportKey
	if canonical, ok := s.aliases[transportKey]; ok {
		key = canonical
	}

	if serial != "" && serial != key {
		if existing, ok := s.entries[key]; ok {
			if target, ok := s.entries[serial]; ok {
				// Both exist: fold the transport-keyed accumulator into the
				// canonical one, newest-wins per message kind.
				mergeEntry(target, existing)
				delete(s.entries, key)
			} else {
				s.entries[serial] = existing
				delete(s.entries, key)
			}
		}
		if transportKey != serial {
			s.aliases[transportKey] = serial
		}
		key = serial
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e, key
}

// mergeEntry copies dst-missing message kinds from src into dst.
func mergeEntry(dst, src *entry) {
	if dst.basicID == nil {
		dst.basicID = src.basicID
	}
	if dst.location == nil {
		dst.location = src.location
	}
	if dst.system == nil {
		dst.system = src.system
	}
	if dst.selfID == nil {
		dst.selfID = src.selfID
	}
	if dst.operatorID == nil {
		dst.operatorID = src.operatorID
	}
	if dst.direct == nil {
		dst.direct = src.direct
	}
}

// flatten expands Message Packs into their sub-messages, depth-first.
func flatten(msgs []odid.Message) []odid.Message {
	var out []odid.Message
	for _, m := range msgs {
		if pack, ok := m.(odid.Pack); ok {
			out = append(out, flatten(pack.Messages)...)
			continue
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// derive folds the accumulated message set into the visible track. The track
// is always rebuilt from scratch; it is never patched incrementally.
func derive(key string, e *entry) *Track {
	t := &Track{ID: key}
	if e.direct != nil {
		copied := *e.direct
		t = &copied
		t.ID = key
	}

	if e.basicID != nil {
		t.IDType = e.basicID.IDType
		t.UASType = e.basicID.UASType
		t.SerialNumber = e.basicID.UAID
	}

	if e.location != nil {
		loc := e.location
		// (0,0) is the ODID "unknown position" encoding.
		if loc.Lat != 0 || loc.Lon != 0 {
			lat, lon := loc.Lat, loc.Lon
			t.Lat, t.Lon = &lat, &lon
		}
		t.AltFt = loc.AltFeet
		t.HeadingDeg = loc.HeadingDeg
		t.SpeedKt = loc.SpeedKt
		t.VertRateFpm = loc.VertRateFpm
		t.OperationalStatus = loc.OperationalStatus
	}

	if e.system != nil {
		sys := e.system
		t.RIDType = sys.RIDType
		lat, lon := sys.Lat, sys.Lon
		// Exactly one of operator/takeoff location is populated, selected by
		// the declared RID system type.
		if sys.RIDType == odid.RIDTypeBroadcastModule {
			t.TakeoffLat, t.TakeoffLon = &lat, &lon
			t.TakeoffAltFt = sys.AltFeet
			t.OperatorLat, t.OperatorLon, t.OperatorAltFt = nil, nil, nil
		} else {
			t.OperatorLat, t.OperatorLon = &lat, &lon
			t.OperatorAltFt = sys.AltFeet
			t.TakeoffLat, t.TakeoffLon, t.TakeoffAltFt = nil, nil, nil
		}
	}

	if e.selfID != nil {
		t.Description = e.selfID.Description
	}
	if e.operatorID != nil {
		t.OperatorID = e.operatorID.ID
	}

	t.Source = e.source
	t.RSSI = e.rssi
	t.LastSeen = e.lastSeen
	return t
}

package drone

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avbrook/skyrelay/internal/config"
	"github.com/avbrook/skyrelay/internal/odid"
	"github.com/avbrook/skyrelay/pkg/logger"
)

// Publisher delivers snapshots to subscribers. Satisfied by the websocket
// hub.
type Publisher interface {
	Broadcast(snapshot interface{})
}

// Stats are cumulative ingestion counters for the Remote ID path.
type Stats struct {
	Broadcasts     uint64 `json:"broadcasts"`
	Decoded        uint64 `json:"messages_decoded"`
	ParsedUpserts  uint64 `json:"parsed_upserts"`
	IngestRequests uint64 `json:"ingest_requests"`
}

// Service runs the Remote ID pipeline: it accepts decoded ODID traffic from
// the BLE scanner and the HTTP ingest endpoint, maintains the drone store,
// and publishes periodic snapshots. All adapters funnel through the same
// store; none of them block on the publisher.
type Service struct {
	store     *Store
	interval  time.Duration
	publisher Publisher
	logger    *logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Transport health, reported by the adapters.
	flagsMu       sync.RWMutex
	scanning      bool
	bleAvailable  bool
	wifiAvailable bool

	broadcasts     atomic.Uint64
	decoded        atomic.Uint64
	parsedUpserts  atomic.Uint64
	ingestRequests atomic.Uint64
}

// NewService creates the Remote ID service.
func NewService(cfg config.RIDConfig, snapshotInterval time.Duration, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		store: NewStore(StoreConfig{
			StaleTimeout: time.Duration(cfg.StaleTimeoutSecs) * time.Second,
		}),
		interval:  snapshotInterval,
		publisher: publisher,
		logger:    log.Named("rid"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the snapshot publish loop.
func (s *Service) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.publishLoop(ctx)
	return nil
}

// Stop shuts the service down. Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// IngestBroadcast decodes one raw ODID payload (a single 25-byte message or
// a Message Pack) received under a transport key and merges it into the
// store. Truncated or unknown payloads are dropped silently. Returns the
// number of messages applied.
func (s *Service) IngestBroadcast(transportKey string, payload []byte, source string, rssi *int) int {
	s.broadcasts.Add(1)

	msg := odid.Decode(payload)
	if msg == nil {
		return 0
	}

	n := s.store.Ingest(transportKey, []odid.Message{msg}, source, rssi, time.Now().UTC())
	s.decoded.Add(uint64(n))
	return n
}

// IngestParsed writes pre-parsed drone tracks directly into the store,
// bypassing the decoder. Entries without an id are skipped.
func (s *Service) IngestParsed(tracks []Track) int {
	now := time.Now().UTC()
	applied := 0
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		s.store.Upsert(t, now)
		applied++
	}
	s.parsedUpserts.Add(uint64(applied))
	return applied
}

// CountIngestRequest bumps the HTTP ingest request counter.
func (s *Service) CountIngestRequest() {
	s.ingestRequests.Add(1)
}

// SetBLEStatus reports BLE adapter health; called by the scanner.
func (s *Service) SetBLEStatus(scanning, available bool) {
	s.flagsMu.Lock()
	s.scanning = scanning
	s.bleAvailable = available
	s.flagsMu.Unlock()
}

// SetWiFiAvailable reports whether the WiFi-side ingest path is up.
func (s *Service) SetWiFiAvailable(available bool) {
	s.flagsMu.Lock()
	s.wifiAvailable = available
	s.flagsMu.Unlock()
}

// Snapshot returns the current point-in-time projection of the store.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshotAt(time.Now().UTC())
}

// Status returns the transport health summary for GET /api/rid/status.
func (s *Service) Status() Status {
	s.flagsMu.RLock()
	defer s.flagsMu.RUnlock()
	return Status{
		Scanning:      s.scanning,
		BLEAvailable:  s.bleAvailable,
		WiFiAvailable: s.wifiAvailable,
		DroneCount:    s.store.Count(),
	}
}

// Stats returns cumulative ingestion counters.
func (s *Service) Stats() Stats {
	return Stats{
		Broadcasts:     s.broadcasts.Load(),
		Decoded:        s.decoded.Load(),
		ParsedUpserts:  s.parsedUpserts.Load(),
		IngestRequests: s.ingestRequests.Load(),
	}
}

func (s *Service) snapshotAt(now time.Time) *Snapshot {
	tracks := s.store.Snapshot(now)

	s.flagsMu.RLock()
	scanning, ble, wifi := s.scanning, s.bleAvailable, s.wifiAvailable
	s.flagsMu.RUnlock()

	return &Snapshot{
		Type:          SnapshotType,
		Timestamp:     now.UnixMilli(),
		Drones:        tracks,
		Count:         len(tracks),
		Scanning:      scanning,
		BLEAvailable:  ble,
		WiFiAvailable: wifi,
	}
}

func (s *Service) publishLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.publisher.Broadcast(s.snapshotAt(now.UTC()))
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

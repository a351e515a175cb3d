package aircraft

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avbrook/skyrelay/internal/config"
	"github.com/avbrook/skyrelay/internal/gdl90"
	"github.com/avbrook/skyrelay/pkg/logger"
)

// Publisher delivers snapshots to subscribers. Satisfied by the websocket
// hub.
type Publisher interface {
	Broadcast(snapshot interface{})
}

// Stats are cumulative ingestion counters for the GDL90 path.
type Stats struct {
	Datagrams      uint64 `json:"datagrams"`
	FramesAccepted uint64 `json:"frames_accepted"`
	Decoded        uint64 `json:"messages_decoded"`
}

// Service runs the GDL90 ingestion pipeline: a UDP listener feeding the
// aircraft store, and a periodic snapshot publisher.
type Service struct {
	store     *Store
	cfg       config.GDL90Config
	interval  time.Duration
	publisher Publisher
	logger    *logger.Logger

	conn     *net.UDPConn
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	datagrams      atomic.Uint64
	framesAccepted atomic.Uint64
	decoded        atomic.Uint64
}

// NewService creates the GDL90 ingestion service.
func NewService(cfg config.GDL90Config, snapshotInterval time.Duration, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		store: NewStore(StoreConfig{
			StaleTimeout:    time.Duration(cfg.StaleTimeoutSecs) * time.Second,
			ReceiverTimeout: time.Duration(cfg.ReceiverTimeoutSecs) * time.Second,
			MagneticTrack:   cfg.MagneticTrackEnabled,
		}),
		cfg:       cfg,
		interval:  snapshotInterval,
		publisher: publisher,
		logger:    log.Named("gdl90"),
		stopCh:    make(chan struct{}),
	}
}

// Start binds the UDP listener and starts the publish loop. A UDP bind
// failure is fatal to the listener only: the publisher keeps running and the
// snapshot reports receiverConnected=false.
func (s *Service) Start(ctx context.Context) error {
	addr := &net.UDPAddr{Port: s.cfg.UDPPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		s.logger.Error("UDP bind failed, GDL90 ingestion disabled",
			logger.Int("port", s.cfg.UDPPort),
			logger.Error(err))
	} else {
		s.conn = conn
		s.logger.Info("Listening for GDL90 datagrams", logger.Int("port", s.cfg.UDPPort))
		s.wg.Add(1)
		go s.readLoop()
	}

	s.wg.Add(1)
	go s.publishLoop(ctx)
	return nil
}

// Stop shuts the service down. Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.conn != nil {
			// Unblocks the blocking read.
			s.conn.Close()
		}
	})
	s.wg.Wait()
}

// Snapshot returns the current point-in-time projection of the store.
func (s *Service) Snapshot() *Snapshot {
	return s.store.Snapshot(time.Now().UTC())
}

// Stats returns cumulative ingestion counters.
func (s *Service) Stats() Stats {
	return Stats{
		Datagrams:      s.datagrams.Load(),
		FramesAccepted: s.framesAccepted.Load(),
		Decoded:        s.decoded.Load(),
	}
}

// ProcessDatagram runs one raw UDP payload through deframe, decode, and store
// merge. Malformed frames and unknown messages are dropped silently; a bad
// frame never affects its neighbors in the same datagram.
func (s *Service) ProcessDatagram(data []byte, now time.Time) {
	s.datagrams.Add(1)
	s.store.MarkReceived(now)

	for _, msg := range gdl90.Deframe(data) {
		s.framesAccepted.Add(1)
		decoded := gdl90.Decode(msg)
		if decoded == nil {
			continue
		}
		s.decoded.Add(1)
		s.store.Apply(decoded, now)
	}
}

func (s *Service) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.logger.Debug("UDP read error", logger.Error(err))
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		s.ProcessDatagram(payload, time.Now().UTC())
	}
}

func (s *Service) publishLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			snap := s.store.Snapshot(now.UTC())
			s.publisher.Broadcast(snap)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// String implements fmt.Stringer for log-friendly stats output.
func (st Stats) String() string {
	return fmt.Sprintf("datagrams=%d frames=%d decoded=%d",
		st.Datagrams, st.FramesAccepted, st.Decoded)
}

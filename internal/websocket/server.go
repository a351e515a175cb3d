// Package websocket implements the snapshot push channel: a hub that fans a
// periodic snapshot message out to every connected subscriber.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/avbrook/skyrelay/pkg/logger"
)

// SnapshotFunc produces the current snapshot for a newly connected client so
// it never sits idle until the next publish tick. May return nil when no
// snapshot is available yet.
type SnapshotFunc func() interface{}

// Client represents a connected WebSocket subscriber.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	mu     sync.Mutex
	closed bool
}

// Server is a WebSocket fan-out hub. A slow or disconnected client never
// stalls the broadcast path: sends are non-blocking, and a client whose send
// buffer is full is dropped.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stopCh     chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
	snapshotFn SnapshotFunc
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket hub.
func NewServer(name string, snapshotFn SnapshotFunc, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		stopCh:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		snapshotFn: snapshotFn,
		logger:     log.Named(name),
	}
}

// Run processes client registration and broadcast fan-out until Stop is
// called. Intended to run in its own goroutine.
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket hub")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", count))

		case client := <-s.unregister:
			s.removeClient(client)

		case payload := <-s.broadcast:
			var dropped []*Client

			s.mu.RLock()
			for client := range s.clients {
				if !client.trySend(payload) {
					dropped = append(dropped, client)
				}
			}
			s.mu.RUnlock()

			for _, client := range dropped {
				s.logger.Debug("Dropping slow client",
					logger.String("remote_addr", client.conn.RemoteAddr().String()))
				s.removeClient(client)
			}

		case <-s.stopCh:
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.close()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ClientCount returns the number of connected subscribers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast marshals the snapshot and queues it for delivery to every
// connected client. Never blocks the caller: if the hub's queue is full the
// snapshot is skipped (the next tick supersedes it anyway).
func (s *Server) Broadcast(snapshot interface{}) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("Failed to marshal snapshot", logger.Error(err))
		return
	}

	select {
	case s.broadcast <- payload:
	case <-s.stopCh:
	default:
		s.logger.Debug("Broadcast queue full, skipping snapshot")
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket subscription and
// immediately delivers the current snapshot.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("New subscriber", logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		server: s,
	}

	// Seed the client with an immediate snapshot before it joins the
	// broadcast rotation.
	if s.snapshotFn != nil {
		if snap := s.snapshotFn(); snap != nil {
			if payload, err := json.Marshal(snap); err == nil {
				client.send <- payload
			}
		}
	}

	select {
	case s.register <- client:
	case <-s.stopCh:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

func (s *Server) removeClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
	}
	count := len(s.clients)
	s.mu.Unlock()

	client.close()
	s.logger.Debug("Client unregistered", logger.Int("client_count", count))
}

// trySend queues a payload without blocking. Returns false when the client's
// buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// readPump drains (and discards) client messages so pings and close frames
// are processed, unregistering on error.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.stopCh:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued payloads to the connection.
func (c *Client) writePump() {
	defer c.conn.Close()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	// Channel closed by the hub.
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

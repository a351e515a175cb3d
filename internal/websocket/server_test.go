package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avbrook/skyrelay/pkg/logger"
)

func newTestHub(t *testing.T, snapshotFn SnapshotFunc) (*Server, *httptest.Server) {
	t.Helper()
	hub := NewServer("test", snapshotFn, logger.NewNop())
	go hub.Run()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
	})
	return hub, ts
}

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return payload
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// A new subscriber gets a snapshot right away, before any broadcast tick.
func TestHandleConnection_ImmediateSnapshot(t *testing.T) {
	_, ts := newTestHub(t, func() interface{} {
		return map[string]interface{}{"type": "snapshot", "count": 7}
	})

	conn := dialHub(t, ts)

	// No Broadcast has been issued, so anything received must be the seed.
	var got map[string]interface{}
	if err := json.Unmarshal(readMessage(t, conn), &got); err != nil {
		t.Fatalf("unmarshal seed snapshot: %v", err)
	}
	if got["type"] != "snapshot" || got["count"] != float64(7) {
		t.Fatalf("unexpected seed snapshot: %v", got)
	}
}

// A client whose send buffer is full is dropped; the other clients keep
// receiving and the broadcast path never blocks on it.
func TestBroadcast_SlowClientDropped(t *testing.T) {
	hub, ts := newTestHub(t, nil)

	healthy := dialHub(t, ts)
	waitFor(t, "healthy client registration", func() bool { return hub.ClientCount() == 1 })

	// Build a second client by hand with a tiny send buffer and no write
	// pump, so its queue fills on the first broadcast.
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *websocket.Conn, 1)
	slowTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(slowTS.Close)
	dialHub(t, slowTS)
	slow := &Client{conn: <-connCh, send: make(chan []byte, 1), server: hub}
	hub.register <- slow
	waitFor(t, "slow client registration", func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast(map[string]string{"seq": "1"}) // fills the slow client's buffer
	hub.Broadcast(map[string]string{"seq": "2"}) // finds it full and drops it

	waitFor(t, "slow client drop", func() bool { return hub.ClientCount() == 1 })

	// The healthy client saw both payloads in order.
	if got := string(readMessage(t, healthy)); !strings.Contains(got, `"1"`) {
		t.Fatalf("first broadcast lost: %s", got)
	}
	if got := string(readMessage(t, healthy)); !strings.Contains(got, `"2"`) {
		t.Fatalf("second broadcast lost: %s", got)
	}
}

func TestStop_IdempotentAndDisconnectsClients(t *testing.T) {
	hub, ts := newTestHub(t, nil)

	conn := dialHub(t, ts)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	hub.Stop()
	hub.Stop() // second call must be a no-op

	// Broadcast after Stop must return without blocking.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(map[string]string{"late": "tick"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Broadcast blocked after Stop")
	}

	// The hub closed the connection on its way out.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 4; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatalf("connection still open after Stop")
}

package api

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avbrook/skyrelay/internal/aircraft"
	"github.com/avbrook/skyrelay/internal/config"
	"github.com/avbrook/skyrelay/internal/drone"
	"github.com/avbrook/skyrelay/pkg/logger"
)

type nopPublisher struct{}

func (nopPublisher) Broadcast(interface{}) {}

func testRouter(t *testing.T, mutate func(*config.Config)) (http.Handler, *drone.Service) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNop()
	aircraftService := aircraft.NewService(cfg.GDL90, time.Second, nopPublisher{}, log)
	droneService := drone.NewService(cfg.RID, time.Second, nopPublisher{}, log)

	return NewRouter(aircraftService, droneService, cfg, log).Routes(), droneService
}

// A 25-byte Basic ID message: serial number id type, multirotor.
func rawBasicIDPayload(serial string) []byte {
	b := make([]byte, 25)
	b[0] = 0x02
	b[1] = 0x12
	copy(b[2:22], serial)
	return b
}

func postRID(t *testing.T, h http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/rid", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostRID_HexPayload(t *testing.T) {
	h, svc := testRouter(t, nil)

	rec := postRID(t, h, map[string]interface{}{
		"payload":       hex.EncodeToString(rawBasicIDPayload("HTTPSERIAL01")),
		"broadcastType": "wifi",
		"id":            "sniffer-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ridIngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Accepted != 1 {
		t.Fatalf("accepted: got %d, want 1", resp.Accepted)
	}
	if svc.Status().DroneCount != 1 {
		t.Errorf("drone not stored")
	}
}

func TestPostRID_Base64Payload(t *testing.T) {
	h, svc := testRouter(t, nil)

	rec := postRID(t, h, map[string]interface{}{
		"payload": base64.StdEncoding.EncodeToString(rawBasicIDPayload("B64SERIAL001")),
		"id":      "sniffer-2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.Status().DroneCount != 1 {
		t.Errorf("drone not stored")
	}
}

func TestPostRID_ParsedDrones(t *testing.T) {
	h, svc := testRouter(t, nil)

	lat, lon := 51.5, -0.1
	rec := postRID(t, h, map[string]interface{}{
		"drones": []drone.Track{
			{ID: "ext-1", SerialNumber: "EXT1", Lat: &lat, Lon: &lon},
			{ID: "ext-2", SerialNumber: "EXT2"},
			{SerialNumber: "NO-ID"}, // skipped: no id
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ridIngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Accepted != 2 {
		t.Fatalf("accepted: got %d, want 2", resp.Accepted)
	}
	if svc.Status().DroneCount != 2 {
		t.Errorf("drone count: got %d, want 2", svc.Status().DroneCount)
	}
}

func TestPostRID_BadRequests(t *testing.T) {
	h, _ := testRouter(t, nil)

	// Body that is not JSON.
	req := httptest.NewRequest(http.MethodPost, "/api/rid", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-JSON body: got %d", rec.Code)
	}

	// Payload that is neither hex nor base64.
	if rec := postRID(t, h, map[string]interface{}{"payload": "not-a-payload!"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad payload: got %d", rec.Code)
	}

	// Neither payload nor drones.
	if rec := postRID(t, h, map[string]interface{}{"rssi": -60}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty request: got %d", rec.Code)
	}
}

func TestPostRID_RateLimited(t *testing.T) {
	h, _ := testRouter(t, func(cfg *config.Config) {
		cfg.RID.IngestRatePerSec = 1
		cfg.RID.IngestBurst = 1
	})

	body := map[string]interface{}{
		"payload": hex.EncodeToString(rawBasicIDPayload("RATELIMIT001")),
		"id":      "sniffer-3",
	}
	if rec := postRID(t, h, body); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rec.Code)
	}
	if rec := postRID(t, h, body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
}

func TestGetRIDStatus(t *testing.T) {
	h, svc := testRouter(t, nil)
	svc.SetBLEStatus(true, true)
	svc.SetWiFiAvailable(true)

	req := httptest.NewRequest(http.MethodGet, "/api/rid/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var status drone.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !status.Scanning || !status.BLEAvailable || !status.WiFiAvailable {
		t.Errorf("flags not reported: %+v", status)
	}
}

func TestGetStatus(t *testing.T) {
	h, _ := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Aircraft.Count != 0 || resp.Drones.Status.DroneCount != 0 {
		t.Errorf("unexpected counts: %+v", resp)
	}
}

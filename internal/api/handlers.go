package api

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/avbrook/skyrelay/internal/aircraft"
	"github.com/avbrook/skyrelay/internal/drone"
	"github.com/avbrook/skyrelay/pkg/logger"
)

// Handler contains the ingest API handlers.
type Handler struct {
	aircraftService *aircraft.Service
	droneService    *drone.Service
	limiter         *rate.Limiter // nil = unlimited
	logger          *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(aircraftService *aircraft.Service, droneService *drone.Service, limiter *rate.Limiter, log *logger.Logger) *Handler {
	return &Handler{
		aircraftService: aircraftService,
		droneService:    droneService,
		limiter:         limiter,
		logger:          log.Named("api"),
	}
}

// ridIngestRequest is the POST /api/rid request body. Either Payload (raw
// ODID bytes, hex or base64 encoded) or Drones (pre-parsed entries) must be
// set.
type ridIngestRequest struct {
	Payload       string        `json:"payload,omitempty"`
	BroadcastType string        `json:"broadcastType,omitempty"`
	RSSI          *int          `json:"rssi,omitempty"`
	ID            string        `json:"id,omitempty"`
	Drones        []drone.Track `json:"drones,omitempty"`
}

type ridIngestResponse struct {
	Accepted int `json:"accepted"`
}

// statusResponse is the GET /api/status body.
type statusResponse struct {
	Aircraft struct {
		Count int            `json:"count"`
		Stats aircraft.Stats `json:"stats"`
	} `json:"aircraft"`
	Drones struct {
		Status drone.Status `json:"status"`
		Stats  drone.Stats  `json:"stats"`
	} `json:"drones"`
}

// PostRID ingests Remote ID data: raw ODID bytes are run through the decoder
// and merge path; pre-parsed drone entries are written directly into the
// store under the caller-supplied id.
func (h *Handler) PostRID(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "ingest rate limit exceeded")
		return
	}
	h.droneService.CountIngestRequest()

	var req ridIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case len(req.Drones) > 0:
		accepted := h.droneService.IngestParsed(req.Drones)
		writeJSON(w, http.StatusOK, ridIngestResponse{Accepted: accepted})

	case req.Payload != "":
		raw, err := decodePayload(req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "payload is neither valid hex nor base64")
			return
		}

		source := req.BroadcastType
		if source == "" {
			source = drone.SourceWiFi
		}
		key := req.ID
		if key == "" {
			key = syntheticKey(r.RemoteAddr)
		}

		accepted := h.droneService.IngestBroadcast(key, raw, source, req.RSSI)
		writeJSON(w, http.StatusOK, ridIngestResponse{Accepted: accepted})

	default:
		writeError(w, http.StatusBadRequest, "either payload or drones is required")
	}
}

// GetRIDStatus reports Remote ID transport health and the live drone count.
func (h *Handler) GetRIDStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.droneService.Status())
}

// GetStatus reports overall relay health and ingestion counters.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	snap := h.aircraftService.Snapshot()
	resp.Aircraft.Count = snap.Count
	resp.Aircraft.Stats = h.aircraftService.Stats()
	resp.Drones.Status = h.droneService.Status()
	resp.Drones.Stats = h.droneService.Stats()
	writeJSON(w, http.StatusOK, resp)
}

// decodePayload accepts hex first, then standard base64.
func decodePayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(s); err == nil {
		return raw, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return raw, nil
}

// syntheticKey derives a stable transport id for anonymous ingest sources
// from the caller's address.
func syntheticKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return "http:" + host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

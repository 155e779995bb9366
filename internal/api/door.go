package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/doorwatch/internal/history"
	"github.com/nerrad567/doorwatch/internal/sensor"
)

// doorResponse is the body of GET /door and POST /door/refresh.
type doorResponse struct {
	DeviceID  string       `json:"device_id"`
	State     sensor.State `json:"state"`
	UpdatedAt *time.Time   `json:"updated_at"`
}

// historyResponse is the body of GET /door/history.
type historyResponse struct {
	DeviceID string          `json:"device_id"`
	Count    int             `json:"count"`
	Entries  []history.Entry `json:"entries"`
}

// handleGetDoor returns the cached door state.
// The device is never contacted; Unknown means no successful reading yet.
func (s *Server) handleGetDoor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.doorBody(s.monitor.Snapshot()))
}

// handleRefreshDoor fetches the state from the device on demand.
// A failed fetch answers 502 with the state still held in the cache.
func (s *Server) handleRefreshDoor(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.monitor.Refresh(r.Context()); !ok {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":  http.StatusBadGateway,
			"code":    ErrCodeDeviceUnavailable,
			"message": "device did not return a state",
			"door":    s.doorBody(s.monitor.Snapshot()),
		})
		return
	}

	writeJSON(w, http.StatusOK, s.doorBody(s.monitor.Snapshot()))
}

// handleDoorHistory lists recorded readings, newest first.
func (s *Server) handleDoorHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error("failed to read door history", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		DeviceID: s.deviceID,
		Count:    len(entries),
		Entries:  entries,
	})
}

func (s *Server) doorBody(snap sensor.Snapshot) doorResponse {
	resp := doorResponse{DeviceID: s.deviceID, State: snap.State}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

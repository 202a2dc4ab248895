package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/metrics"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

type monitorRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (m monitorRequest) spec() storage.MonitorSpec {
	return storage.MonitorSpec{Name: m.Name, Target: m.URL, Type: checker.Type(m.Type)}
}

func decodeMonitorRequest(w http.ResponseWriter, r *http.Request) (monitorRequest, bool) {
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return req, false
	}
	if strings.TrimSpace(req.Type) != "" {
		if _, known := checker.ParseType(req.Type); !known {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q (must be http, dns, or icmp)", req.Type))
			return req, false
		}
	}
	return req, true
}

type monitorDetail struct {
	storage.Monitor
	Uptime float64 `json:"uptime"`
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.store.ListMonitors(r.Context())
	if err != nil {
		s.writeStoreError(w, "ListMonitors", err)
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMonitorRequest(w, r)
	if !ok {
		return
	}
	m, err := s.store.AddMonitor(r.Context(), req.spec())
	if err != nil {
		s.writeStoreError(w, "AddMonitor", err)
		return
	}
	s.logger.Info("monitor added", "monitor", m.ID, "name", m.Name, "type", m.Type)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	m, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	pct, err := s.store.UptimePercent(r.Context(), id, storage.DefaultWindow)
	if err != nil {
		s.writeStoreError(w, "UptimePercent", err)
		return
	}
	writeJSON(w, http.StatusOK, monitorDetail{Monitor: m, Uptime: pct})
}

func (s *Server) handleUpdateMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	req, ok := decodeMonitorRequest(w, r)
	if !ok {
		return
	}
	prev, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	m, err := s.store.UpdateMonitor(r.Context(), id, req.spec())
	if err != nil {
		s.writeStoreError(w, "UpdateMonitor", err)
		return
	}
	if m.Type != prev.Type {
		// The next check records the status under the new type.
		metrics.ForgetMonitor(strconv.FormatInt(id, 10))
	}
	writeJSON(w, http.StatusOK, m)
}

type pauseRequest struct {
	Paused *bool `json:"paused"`
}

type pauseResponse struct {
	ID     int64 `json:"id"`
	Paused bool  `json:"paused"`
}

func (s *Server) handlePauseMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Paused == nil {
		writeError(w, http.StatusBadRequest, "paused must be true or false")
		return
	}
	if err := s.store.SetPaused(r.Context(), id, *req.Paused); err != nil {
		s.writeStoreError(w, "SetPaused", err)
		return
	}
	writeJSON(w, http.StatusOK, pauseResponse{ID: id, Paused: *req.Paused})
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	m, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	if err := s.store.DeleteMonitor(r.Context(), id); err != nil {
		s.writeStoreError(w, "DeleteMonitor", err)
		return
	}
	metrics.ForgetMonitor(strconv.FormatInt(id, 10))
	s.logger.Info("monitor deleted", "monitor", id, "name", m.Name)
	w.WriteHeader(http.StatusNoContent)
}

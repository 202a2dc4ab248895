package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hazz-dev/uptimekit/internal/stats"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 1000
)

type uptimeResponse struct {
	Uptime float64 `json:"uptime"`
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMonitor(r.Context(), id); err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	pct, err := s.store.UptimePercent(r.Context(), id, storage.DefaultWindow)
	if err != nil {
		s.writeStoreError(w, "UptimePercent", err)
		return
	}
	writeJSON(w, http.StatusOK, uptimeResponse{Uptime: pct})
}

type historyResponse struct {
	Checks []storage.CheckRecord `json:"checks"`
	Total  int                   `json:"total"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	if _, err := s.store.GetMonitor(r.Context(), id); err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	checks, total, err := s.store.History(r.Context(), id, limit, offset)
	if err != nil {
		s.writeStoreError(w, "History", err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Checks: checks,
		Total:  total,
	})
}

type downtimeResponse struct {
	Downtimes []stats.Downtime `json:"downtimes"`
}

func (s *Server) handleDowntime(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMonitor(r.Context(), id); err != nil {
		s.writeStoreError(w, "GetMonitor", err)
		return
	}
	periods, err := s.store.Downtimes(r.Context(), id, storage.DefaultWindow)
	if err != nil {
		s.writeStoreError(w, "Downtimes", err)
		return
	}
	if periods == nil {
		periods = []stats.Downtime{}
	}
	writeJSON(w, http.StatusOK, downtimeResponse{Downtimes: periods})
}

// --- Charts ---

type uptimePoint struct {
	Time   time.Time `json:"time"`
	Uptime float64   `json:"uptime"`
}

type responseTimePoint struct {
	Time            time.Time `json:"time"`
	AvgResponseTime float64   `json:"avg_response_time"`
}

func uptimeSeries(buckets []stats.Bucket) []uptimePoint {
	out := make([]uptimePoint, len(buckets))
	for i, b := range buckets {
		out[i] = uptimePoint{Time: b.Time, Uptime: b.Uptime}
	}
	return out
}

func responseTimeSeries(buckets []stats.Bucket) []responseTimePoint {
	out := make([]responseTimePoint, len(buckets))
	for i, b := range buckets {
		out[i] = responseTimePoint{Time: b.Time, AvgResponseTime: b.AvgResponseMs}
	}
	return out
}

// buckets loads the chart buckets for the {id} monitor, or for the whole
// fleet when perMonitor is false. It writes the error response itself.
func (s *Server) buckets(w http.ResponseWriter, r *http.Request, perMonitor bool) ([]stats.Bucket, bool) {
	var id *int64
	width := stats.FleetBucketWidth
	if perMonitor {
		mid, ok := monitorID(w, r)
		if !ok {
			return nil, false
		}
		if _, err := s.store.GetMonitor(r.Context(), mid); err != nil {
			s.writeStoreError(w, "GetMonitor", err)
			return nil, false
		}
		id = &mid
		width = stats.MonitorBucketWidth
	}
	b, err := s.store.ChartBuckets(r.Context(), id, storage.DefaultWindow, width)
	if err != nil {
		s.writeStoreError(w, "ChartBuckets", err)
		return nil, false
	}
	return b, true
}

func (s *Server) handleFleetUptimeChart(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.buckets(w, r, false); ok {
		writeJSON(w, http.StatusOK, uptimeSeries(b))
	}
}

func (s *Server) handleFleetResponseTimeChart(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.buckets(w, r, false); ok {
		writeJSON(w, http.StatusOK, responseTimeSeries(b))
	}
}

func (s *Server) handleMonitorUptimeChart(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.buckets(w, r, true); ok {
		writeJSON(w, http.StatusOK, uptimeSeries(b))
	}
}

func (s *Server) handleMonitorResponseTimeChart(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.buckets(w, r, true); ok {
		writeJSON(w, http.StatusOK, responseTimeSeries(b))
	}
}

// --- Fleet ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.store.ListMonitors(r.Context())
	if err != nil {
		s.writeStoreError(w, "ListMonitors", err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(storage.MonitorStates(monitors)))
}

func (s *Server) handleRunTick(w http.ResponseWriter, r *http.Request) {
	if s.ticker == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	writeJSON(w, http.StatusOK, s.ticker.Tick(r.Context()))
}

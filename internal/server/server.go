package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/uptimekit/internal/scheduler"
	"github.com/hazz-dev/uptimekit/internal/stats"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

// ServerStore defines the storage queries the server needs.
type ServerStore interface {
	ListMonitors(ctx context.Context) ([]storage.Monitor, error)
	GetMonitor(ctx context.Context, id int64) (storage.Monitor, error)
	AddMonitor(ctx context.Context, spec storage.MonitorSpec) (storage.Monitor, error)
	UpdateMonitor(ctx context.Context, id int64, spec storage.MonitorSpec) (storage.Monitor, error)
	SetPaused(ctx context.Context, id int64, paused bool) error
	DeleteMonitor(ctx context.Context, id int64) error
	UptimePercent(ctx context.Context, id int64, window time.Duration) (float64, error)
	History(ctx context.Context, id int64, limit, offset int) ([]storage.CheckRecord, int, error)
	Downtimes(ctx context.Context, id int64, window time.Duration) ([]stats.Downtime, error)
	ChartBuckets(ctx context.Context, id *int64, window, width time.Duration) ([]stats.Bucket, error)
}

// Ticker runs a scheduling tick on demand.
type Ticker interface {
	Tick(ctx context.Context) scheduler.Report
}

// Server holds the chi router and its dependencies.
type Server struct {
	store       ServerStore
	ticker      Ticker
	corsOrigins []string
	router      chi.Router
	logger      *slog.Logger
}

// New creates a new Server and registers all routes. ticker may be nil, in
// which case POST /api/ticks is unavailable.
func New(store ServerStore, ticker Ticker, corsOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:       store,
		ticker:      ticker,
		corsOrigins: corsOrigins,
		router:      chi.NewRouter(),
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/monitors", func(r chi.Router) {
		r.Get("/", s.handleListMonitors)
		r.Post("/", s.handleCreateMonitor)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMonitor)
			r.Put("/", s.handleUpdateMonitor)
			r.Delete("/", s.handleDeleteMonitor)
			r.Patch("/pause", s.handlePauseMonitor)
			r.Get("/uptime", s.handleUptime)
			r.Get("/history", s.handleHistory)
			r.Get("/downtime", s.handleDowntime)
			r.Get("/chart/uptime", s.handleMonitorUptimeChart)
			r.Get("/chart/response-time", s.handleMonitorResponseTimeChart)
		})
	})

	r.Get("/api/charts/uptime", s.handleFleetUptimeChart)
	r.Get("/api/charts/response-time", s.handleFleetResponseTimeChart)
	r.Get("/api/stats", s.handleStats)
	r.Post("/api/ticks", s.handleRunTick)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// writeStoreError maps storage errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "monitor not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "a monitor with this URL and type already exists")
	case errors.Is(err, storage.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// monitorID parses the {id} URL parameter. It writes a 400 response and
// returns false when the id is not a positive integer.
func monitorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid monitor id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

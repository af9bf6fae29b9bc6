// Package http exposes the service's HTTP surface: operational endpoints
// (health, readiness, metrics), the dashboard read model, and rate-limited
// telemetry ingestion.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floodwatch/flood-alert-service/internal/domain"
	"github.com/floodwatch/flood-alert-service/internal/ratelimit"
	"github.com/floodwatch/flood-alert-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// TelemetryStore is the persistence surface the API handlers need.
type TelemetryStore interface {
	InsertReading(ctx context.Context, locationID int64, r domain.Reading) error
	Dashboard(ctx context.Context, locationID int64) (store.DashboardSnapshot, error)
}

// Server exposes health, readiness, metrics, and API HTTP endpoints.
type Server struct {
	httpServer *http.Server
	store      TelemetryStore
	limiter    *ratelimit.Limiter
	rateLimit  int
	rateWindow time.Duration
	locationID int64
	logger     *slog.Logger
}

// NewServer creates an HTTP server. The ingestion endpoint is throttled
// per client IP through the limiter.
func NewServer(addr string, ready ReadinessChecker, st TelemetryStore,
	limiter *ratelimit.Limiter, rateLimit int, rateWindow time.Duration,
	locationID int64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:      st,
		limiter:    limiter,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		locationID: locationID,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/data", s.handleIngest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Dashboard(r.Context(), s.locationID)
	if err != nil {
		s.logger.Error("dashboard query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load dashboard",
		})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// ingestRequest is one sensor reading posted by a station. recorded_at is
// optional and defaults to the arrival time.
type ingestRequest struct {
	Temperature float64    `json:"temperature"`
	Humidity    float64    `json:"humidity"`
	WindSpeed   float64    `json:"wind_speed"`
	Pressure    float64    `json:"pressure"`
	RecordedAt  *time.Time `json:"recorded_at"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	clientID := clientAddr(r)
	decision := s.limiter.Allow(r.Context(), "ingest", clientID, s.rateLimit, s.rateWindow)
	if !decision.Allowed {
		retry := int(decision.RetryAfter / time.Second)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "rate limit exceeded",
			"retry_after": retry,
		})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}

	reading := domain.Reading{
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		WindSpeed:   req.WindSpeed,
		Pressure:    req.Pressure,
		RecordedAt:  time.Now().UTC(),
	}
	if req.RecordedAt != nil {
		reading.RecordedAt = req.RecordedAt.UTC()
	}

	if err := s.store.InsertReading(r.Context(), s.locationID, reading); err != nil {
		s.logger.Error("reading insert failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to record reading",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// clientAddr identifies the caller for rate limiting: the first hop in
// X-Forwarded-For when present, the connection's source IP otherwise.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

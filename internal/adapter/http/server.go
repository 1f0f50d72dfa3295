package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxPayloadBytes = 1 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Invoker runs a batch payload through the ingestion pipeline.
type Invoker interface {
	Handle(ctx context.Context, payload []byte) (domain.Outcome, error)
	HandleAll(ctx context.Context, payload []byte) ([]domain.Outcome, error)
}

// ObservationReader looks up stored observations.
type ObservationReader interface {
	Get(ctx context.Context, city string, consistency store.Consistency) (domain.Observation, error)
}

// Server exposes the direct-invocation endpoint, observation lookups, and
// health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	invoker    Invoker
	reader     ObservationReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /invoke, /observations/{city},
// /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready ReadinessChecker, invoker Invoker, reader ObservationReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // a batch makes one provider call per record
			IdleTimeout:  60 * time.Second,
		},
		invoker: invoker,
		reader:  reader,
		logger:  logger,
	}

	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("GET /observations/{city}", s.handleGetObservation)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

// handleInvoke accepts a queue envelope or a bare query. The response is the
// last record's outcome, or every outcome with ?all=true. Record failures are
// still 200; only an unreadable batch is a 400.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	logger := s.logger.With("request_id", requestID)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}

	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	if all {
		outcomes, err := s.invoker.HandleAll(r.Context(), payload)
		if err != nil {
			logger.Warn("invoke rejected", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, outcomes)
		return
	}

	outcome, err := s.invoker.Handle(r.Context(), payload)
	if err != nil {
		logger.Warn("invoke rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	logger.Info("invoke handled", "ok", outcome.OK())
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	consistency := store.Eventual
	if strong, _ := strconv.ParseBool(r.URL.Query().Get("consistent")); strong {
		consistency = store.Strong
	}

	obs, err := s.reader.Get(r.Context(), city, consistency)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no observation for " + city})
		return
	}
	if err != nil {
		s.logger.Error("get observation failed", "city", city, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, obs)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server exposes the rate limiter over HTTP, plus a Prometheus text
// exposition endpoint so the monitor can scrape it.
type Server struct {
	limiter *ClientLimiter
	logger  *slog.Logger
	http    *http.Server
}

// NewServer wires the limiter to its HTTP surface on addr.
func NewServer(addr string, limiter *ClientLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{limiter: limiter, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/check", s.handleCheck)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/clients/{id}", s.handleGetClient)
	mux.HandleFunc("PUT /v1/clients/{id}", s.handleConfigureClient)
	mux.HandleFunc("DELETE /v1/clients/{id}", s.handleDeleteClient)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("service listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type checkRequest struct {
	ClientID string `json:"client_id"`
	Cost     int    `json:"cost"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	decision := s.limiter.Check(req.ClientID, req.Cost)
	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusTooManyRequests
		s.logger.Warn("rate limit exceeded", "client", req.ClientID)
	}
	writeJSON(w, status, decision)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Stats())
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.limiter.Client(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown client")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type configureRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

func (s *Server) handleConfigureClient(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rate <= 0 || req.Burst <= 0 {
		writeError(w, http.StatusBadRequest, "rate and burst must be positive")
		return
	}

	s.limiter.Configure(r.PathValue("id"), req.Rate, req.Burst)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "unknown client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics emits Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.limiter.Stats()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# TYPE ratelimiter_requests_allowed_total counter\n")
	fmt.Fprintf(w, "ratelimiter_requests_allowed_total %d\n", stats.Allowed)
	fmt.Fprintf(w, "# TYPE ratelimiter_requests_denied_total counter\n")
	fmt.Fprintf(w, "ratelimiter_requests_denied_total %d\n", stats.Denied)
	fmt.Fprintf(w, "# TYPE ratelimiter_clients gauge\n")
	fmt.Fprintf(w, "ratelimiter_clients %d\n", stats.Clients)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

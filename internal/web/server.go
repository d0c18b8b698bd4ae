// Package web is the dashboard API: read access to tickets, events, and
// monitor definitions, ticket creation, and an authenticated webhook intake
// for external alerting systems.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

// Server serves the HTTP API over a Storage.
type Server struct {
	store         storage.Storage
	webhookSecret string
	logger        *slog.Logger
	http          *http.Server
}

// NewServer builds the API server. webhookSecret guards POST /webhook;
// when empty the endpoint accepts unsigned requests.
func NewServer(addr string, store storage.Storage, webhookSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, webhookSecret: webhookSecret, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/tickets", s.handleListTickets)
	mux.HandleFunc("POST /api/tickets", s.handleCreateTicket)
	mux.HandleFunc("GET /api/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("GET /api/tickets/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /api/tickets/{id}/dependencies", s.handleListDependencies)
	mux.HandleFunc("GET /api/slos", s.handleListSLOs)
	mux.HandleFunc("GET /api/invariants", s.handleListInvariants)
	mux.HandleFunc("GET /api/instances", s.handleListInstances)
	mux.HandleFunc("POST /webhook", s.handleWebhook)

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
		s.logger.Info("api listening", "addr", s.http.Addr)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetStatistics(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStatistics(r.Context())
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filter := types.TicketFilter{Limit: 100}
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := types.Status(v)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if v := q.Get("source_kind"); v != "" {
		kind := types.SourceKind(v)
		if !kind.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid source_kind filter")
			return
		}
		filter.SourceKind = &kind
	}
	if q.Get("ready") == "true" {
		filter.Ready = true
	}

	tickets, err := s.store.ListTickets(r.Context(), filter)
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

type createTicketRequest struct {
	Objective       string         `json:"objective"`
	SuccessCriteria string         `json:"success_criteria"`
	Priority        string         `json:"priority"`
	Context         map[string]any `json:"context"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	priority := types.PriorityMedium
	if req.Priority != "" {
		p, err := types.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		priority = p
	}

	result, err := s.store.CreateTicket(r.Context(), &types.Ticket{
		Objective:       req.Objective,
		SuccessCriteria: req.SuccessCriteria,
		Priority:        priority,
		Context:         req.Context,
		SourceKind:      types.SourceHuman,
	}, "api")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.store.GetTicket(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deps, err := s.store.GetDependencies(r.Context(), id)
	if err != nil {
		s.storageError(w, err)
		return
	}
	dependents, err := s.store.GetDependents(r.Context(), id)
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depends_on": deps,
		"dependents": dependents,
	})
}

func (s *Server) handleListSLOs(w http.ResponseWriter, r *http.Request) {
	slos, err := s.store.ListSLOs(r.Context(), false)
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slos": slos})
}

func (s *Server) handleListInvariants(w http.ResponseWriter, r *http.Request) {
	invariants, err := s.store.ListInvariants(r.Context(), false)
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invariants": invariants})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.store.GetActiveInstances(r.Context())
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("storage error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

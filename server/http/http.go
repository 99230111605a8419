package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/companion/internal/service/memories"
	"github.com/w-h-a/companion/memory"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server exposes the memory operations to the dialogue, emotion, and API
// layers. The context route and its bare-array response are what the
// dialogue service's client already expects.
type Server struct {
	options Options
	service *memories.Service
	srv     *http.Server
}

type createRequest struct {
	Type    string         `json:"type"`
	Content string         `json:"content"`
	Emotion string         `json:"emotion,omitempty"`
	Context memory.Context `json:"context,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type contextRequest struct {
	CurrentEvent string `json:"currentEvent"`
	Limit        int    `json:"limit,omitempty"`
}

type importanceRequest struct {
	Importance float64 `json:"importance"`
}

type cleanupRequest struct {
	MaxAgeDays    int     `json:"maxAgeDays,omitempty"`
	MinImportance float64 `json:"minImportance"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	playerId := mux.Vars(r)["playerId"]

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, memory.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	m, err := s.service.Create(r.Context(), playerId, req.Type, req.Content, req.Emotion, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	playerId := mux.Vars(r)["playerId"]

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	typ := r.URL.Query().Get("type")

	ms, err := s.service.List(r.Context(), playerId, limit, offset, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if ms == nil {
		ms = []memory.Memory{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"memories": ms})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	playerId := mux.Vars(r)["playerId"]

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, memory.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	results, degraded, err := s.service.Search(r.Context(), playerId, req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if degraded {
		w.Header().Set("X-Memory-Degraded", "true")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memories": results,
		"degraded": degraded,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	playerId := mux.Vars(r)["playerId"]

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, memory.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	ms, degraded, err := s.service.Context(r.Context(), playerId, req.CurrentEvent, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if degraded {
		w.Header().Set("X-Memory-Degraded", "true")
	}

	if ms == nil {
		ms = []memory.Memory{}
	}

	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req importanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, memory.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	m, err := s.service.UpdateImportance(r.Context(), id, req.Importance)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	playerId := mux.Vars(r)["playerId"]

	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, memory.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	var maxAge time.Duration
	if req.MaxAgeDays > 0 {
		maxAge = time.Duration(req.MaxAgeDays) * 24 * time.Hour
	}

	count, err := s.service.Cleanup(r.Context(), playerId, maxAge, req.MinImportance)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/players/{playerId}/memories", s.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/players/{playerId}/memories", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/players/{playerId}/memories/search", s.handleSearch).Methods(http.MethodPost)
	router.HandleFunc("/players/{playerId}/memories/cleanup", s.handleCleanup).Methods(http.MethodPost)
	router.HandleFunc("/players/{playerId}/context", s.handleContext).Methods(http.MethodPost)
	router.HandleFunc("/memories/{id}/importance", s.handleImportance).Methods(http.MethodPatch)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	var handler http.Handler = router
	for i := len(s.options.Middleware) - 1; i >= 0; i-- {
		handler = s.options.Middleware[i](handler)
	}

	return otelhttp.NewHandler(handler, "memories")
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:    s.options.Address,
		Handler: s.Router(),
	}

	slog.InfoContext(s.options.Context, "memory server listening", "address", s.options.Address)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case memory.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, memory.ErrNotFound):
		status = http.StatusNotFound
	case memory.IsStorage(err):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func NewServer(service *memories.Service, opts ...Option) *Server {
	options := NewOptions(opts...)

	if service == nil {
		panic("missing memories service for http server")
	}

	return &Server{
		options: options,
		service: service,
	}
}

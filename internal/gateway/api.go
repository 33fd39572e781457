// ABOUTME: HTTP API for routing messages and querying memory over JSON
// ABOUTME: Provides health endpoints plus /api/send, interactions, memory, status, and notes

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/relay-gateway/internal/auth"
	"github.com/2389/relay-gateway/internal/memory"
	"github.com/2389/relay-gateway/internal/notes"
	"github.com/2389/relay-gateway/internal/store"
)

// SendMessageRequest is the JSON request body for POST /api/send.
type SendMessageRequest struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Payload     *Payload `json:"payload"`
}

// SendMessageResponse is the JSON response for POST /api/send.
type SendMessageResponse struct {
	Routed bool    `json:"routed"`
	Result *Result `json:"result,omitempty"`
}

// InteractionResponse is the JSON shape of one stored interaction.
type InteractionResponse struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	Source     string         `json:"source"`
	UserID     string         `json:"user_id,omitempty"`
	InputText  string         `json:"input_text"`
	OutputText string         `json:"output_text"`
	SessionID  string         `json:"session_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// MemoryEntryResponse is the JSON shape of one memory entry.
type MemoryEntryResponse struct {
	ID         string   `json:"id"`
	Timestamp  string   `json:"timestamp"`
	Category   string   `json:"category"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Importance float64  `json:"importance"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
}

// StoreMemoryRequest is the JSON request body for POST /api/memory.
type StoreMemoryRequest struct {
	Category   string   `json:"category"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"`
}

// NoteResponse is the JSON shape of one daily note.
type NoteResponse struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// SaveNoteRequest is the JSON request body for POST /api/notes.
type SaveNoteRequest struct {
	Date    string `json:"date,omitempty"`
	Content string `json:"content"`
}

// Server exposes the gateway over HTTP. Health endpoints are always open;
// /api routes require a bearer token when a verifier is configured.
type Server struct {
	gw       *Gateway
	notebook *notes.Notebook
	verifier *auth.Verifier

	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server for the gateway. The notebook and
// verifier are optional; a nil notebook disables the notes endpoints and a
// nil verifier leaves the API unauthenticated.
func NewServer(gw *Gateway, notebook *notes.Notebook, verifier *auth.Verifier, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		gw:       gw,
		notebook: notebook,
		verifier: verifier,
		logger:   logger.With("component", "http"),
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// RegisterRoutes registers all handlers on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health endpoints - no auth required
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)

	wrap := func(h http.HandlerFunc) http.Handler {
		if s.verifier == nil {
			return h
		}
		return auth.Middleware(s.verifier)(h)
	}

	mux.Handle("/api/send", wrap(s.handleSend))
	mux.Handle("/api/interactions", wrap(s.handleInteractions))
	mux.Handle("/api/memory/search", wrap(s.handleMemorySearch))
	mux.Handle("/api/memory", wrap(s.handleMemoryStore))
	mux.Handle("/api/status", wrap(s.handleStatus))
	mux.Handle("/api/notes", wrap(s.handleNotes))

	if s.verifier != nil {
		s.logger.Info("HTTP auth middleware enabled")
	}
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// handleHealth returns 200 OK while the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the gateway is running.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.gw.State() != StateRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "gateway %s", s.gw.State())
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleSend handles POST /api/send: routes one message through the gateway.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.gw.RouteMessage(r.Context(), req.Source, req.Destination, req.Payload)
	if err != nil {
		if errors.Is(err, ErrNotRunning) {
			s.sendJSONError(w, http.StatusServiceUnavailable, "gateway is not running")
			return
		}
		var timeoutErr *RoutingTimeoutError
		if errors.As(err, &timeoutErr) {
			s.sendJSONError(w, http.StatusGatewayTimeout, timeoutErr.Error())
			return
		}
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			s.sendJSONError(w, http.StatusBadRequest, valErr.Error())
			return
		}
		s.logger.Error("failed to route message", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, SendMessageResponse{
		Routed: result != nil,
		Result: result,
	})
}

// handleInteractions handles GET /api/interactions.
// Supports ?user_id=X to scope to one user and ?limit=N (default 10, max 100).
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gw.memory == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "memory is not configured")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), 10, 100)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	interactions, err := s.gw.memory.GetRecentInteractions(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		s.logger.Error("failed to list interactions", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]InteractionResponse, len(interactions))
	for i, in := range interactions {
		response[i] = InteractionResponse{
			ID:         in.ID,
			Timestamp:  in.Timestamp.Format(time.RFC3339Nano),
			Source:     in.Source,
			UserID:     in.UserID,
			InputText:  in.InputText,
			OutputText: in.OutputText,
			SessionID:  in.SessionID,
			Metadata:   in.Metadata,
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleMemorySearch handles GET /api/memory/search.
// Requires ?q=X; supports ?category=Y and ?limit=N (default 10, max 100).
func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gw.memory == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "memory is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendJSONError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), 10, 100)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.gw.memory.SearchMemory(r.Context(), query, r.URL.Query().Get("category"), limit)
	if err != nil {
		s.logger.Error("failed to search memory", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]MemoryEntryResponse, len(entries))
	for i, entry := range entries {
		response[i] = memoryEntryResponse(entry)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleMemoryStore handles POST /api/memory.
func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gw.memory == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "memory is not configured")
		return
	}

	var req StoreMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	entry := &store.MemoryEntry{
		Category:   req.Category,
		Content:    req.Content,
		Tags:       req.Tags,
		Importance: req.Importance,
	}
	if req.TTLSeconds > 0 {
		expires := time.Now().UTC().Add(time.Duration(req.TTLSeconds) * time.Second)
		entry.ExpiresAt = &expires
	}

	stored, err := s.gw.memory.StoreMemory(r.Context(), entry)
	if err != nil {
		var valErr *memory.ValidationError
		if errors.As(err, &valErr) {
			s.sendJSONError(w, http.StatusBadRequest, valErr.Error())
			return
		}
		s.logger.Error("failed to store memory entry", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": stored.ID})
}

// handleStatus handles GET /api/status: the aggregated health report.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.gw.HealthCheck(r.Context()))
}

// handleNotes handles GET and POST /api/notes. GET supports ?date=2006-01-02
// (default today) and ?format=html for a rendered version.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if s.notebook == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "notes are not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetNote(w, r)
	case http.MethodPost:
		s.handleSaveNote(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	date, err := parseNoteDate(r.URL.Query().Get("date"))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := s.notebook.RenderHTML(date)
		if err != nil {
			s.logger.Error("failed to render note", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
		return
	}

	note, err := s.notebook.Get(date)
	if err != nil {
		s.logger.Error("failed to read note", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, NoteResponse{
		Date:    note.Date.Format(notes.DateLayout),
		Content: note.Content,
	})
}

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	date, err := parseNoteDate(req.Date)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.notebook.Save(date, req.Content); err != nil {
		s.logger.Error("failed to save note", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, NoteResponse{
		Date:    date.Format(notes.DateLayout),
		Content: req.Content,
	})
}

func memoryEntryResponse(entry *store.MemoryEntry) MemoryEntryResponse {
	resp := MemoryEntryResponse{
		ID:         entry.ID,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Category:   entry.Category,
		Content:    entry.Content,
		Tags:       entry.Tags,
		Importance: entry.Importance,
	}
	if entry.ExpiresAt != nil {
		resp.ExpiresAt = entry.ExpiresAt.Format(time.RFC3339Nano)
	}
	return resp
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseSendRequest parses and validates a SendMessageRequest.
// Source, destination, and payload are required.
func parseSendRequest(r io.Reader) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.Source == "" {
		return nil, errors.New("source is required")
	}
	if req.Destination == "" {
		return nil, errors.New("destination is required")
	}
	if req.Payload == nil {
		return nil, errors.New("payload is required")
	}

	return &req, nil
}

// parseLimit parses an optional positive limit parameter, clamped to max.
func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if parsed > max {
		parsed = max
	}
	return parsed, nil
}

// parseNoteDate parses an optional 2006-01-02 date, defaulting to today.
func parseNoteDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	date, err := time.Parse(notes.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be in YYYY-MM-DD format")
	}
	return date, nil
}

// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Covers send routing, memory endpoints, health, notes, and auth enforcement

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/auth"
	"github.com/2389/relay-gateway/internal/notes"
)

func newTestServer(t *testing.T, verifier *auth.Verifier) (*Server, *testEnv) {
	t.Helper()
	env := startedGateway(t, Options{})

	notebook, err := notes.NewNotebook(t.TempDir(), nil)
	require.NoError(t, err)

	return NewServer(env.gw, notebook, verifier, "localhost:0", nil), env
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleReady(t *testing.T) {
	s, env := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.gw.Stop(context.Background()))
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSend(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"source":"channel","destination":"agent","payload":{"content":"hello","channel":"c1","user_id":"u1"}}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Routed)
	require.NotNil(t, resp.Result)
	require.NotNil(t, resp.Result.Agent)
	assert.Equal(t, "echo: hello", resp.Result.Agent.Text)
}

func TestHandleSend_Validation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []string{
		`not json`,
		`{"destination":"agent","payload":{"content":"hi"}}`,
		`{"source":"channel","payload":{"content":"hi"}}`,
		`{"source":"channel","destination":"agent"}`,
	}
	for _, body := range tests {
		rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/send", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSend_UnknownRouteNotRouted(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"source":"agent","destination":"agent","payload":{"content":"hi"}}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Routed)
	assert.Nil(t, resp.Result)
}

func TestHandleSend_NotRunning(t *testing.T) {
	s, env := newTestServer(t, nil)
	require.NoError(t, env.gw.Stop(context.Background()))

	body := `{"source":"channel","destination":"agent","payload":{"content":"hi"}}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleInteractions(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"source":"channel","destination":"agent","payload":{"content":"hello","channel":"c1","user_id":"u1"}}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/interactions?user_id=u1&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []InteractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "c1", resp[0].Source)
	assert.Equal(t, "hello", resp[0].InputText)
}

func TestHandleInteractions_BadLimit(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/interactions?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMemoryStoreAndSearch(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"category":"preferences","content":"prefers dark mode","tags":["ui"],"importance":0.9}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/memory", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created["id"])

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/memory/search?q=dark+mode", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var results []MemoryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "prefers dark mode", results[0].Content)
	assert.Equal(t, 0.9, results[0].Importance)
}

func TestHandleMemoryStore_Validation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/memory", strings.NewReader(`{"category":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.serve(httptest.NewRequest(http.MethodPost, "/api/memory", strings.NewReader(`{"content":"x","importance":1.5}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMemorySearch_RequiresQuery(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/memory/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "running", report.State)
}

func TestHandleNotes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"date":"2026-08-25","content":"# Standup\n\nshipped the gateway"}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/notes?date=2026-08-25", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var note NoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, "2026-08-25", note.Date)
	assert.Contains(t, note.Content, "shipped the gateway")

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/notes?date=2026-08-25&format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1")

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/notes?date=today", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIAuth(t *testing.T) {
	verifier := auth.NewVerifier([]byte("test-secret"))
	s, _ := newTestServer(t, verifier)

	// Health endpoints stay open
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// API requires a bearer token
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.Generate("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = s.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

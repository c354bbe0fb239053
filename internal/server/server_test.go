package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	ws     *analysis.Workspace
}

func newOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": "Cloud revenue: $2.5 billion\nLicensing revenue: $1.5 billion\nOperating income: $900 million",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, ollamaURL string, mutate func(*config.Config)) *testServer {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "")

	cfg := config.Default()
	cfg.LLM.Ollama.BaseURL = ollamaURL
	if mutate != nil {
		mutate(cfg)
	}

	db, err := storage.NewDatabase(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions := storage.NewSessionRepository(db)
	calls := storage.NewLLMCallRepository(db)
	secrets := config.NewSecretStoreFromMap(nil)
	ws := analysis.NewWorkspace(analysis.WorkspaceDeps{
		Factory:  llm.NewFactory(cfg.LLM, zap.NewNop()),
		Secrets:  secrets,
		Analyzer: analysis.NewAnalyzer(zap.NewNop(), analysis.WithRecorder(calls)),
		Sessions: sessions,
		Logger:   zap.NewNop(),
	})

	srv := New(cfg, Deps{
		Reports:     service.NewReportService(ws, nil, zap.NewNop()),
		Secrets:     secrets,
		SessionRepo: sessions,
		LLMCallRepo: calls,
	}, zap.NewNop())
	return &testServer{router: srv.Router(), ws: ws}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["provider_connected"])
	assert.Equal(t, false, body["document_loaded"])
}

func TestProviders(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodGet, "/api/v1/providers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Providers []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			KeyConfigured bool   `json:"key_configured"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Providers, 5)
	assert.Equal(t, "Groq (FREE - Llama 3.3)", body.Providers[0].Name)
	assert.False(t, body.Providers[0].KeyConfigured)
	assert.Equal(t, "ollama", body.Providers[1].ID)
	assert.True(t, body.Providers[1].KeyConfigured)
}

func TestConnectProvider(t *testing.T) {
	s := newTestServer(t, newOllama(t).URL, nil)

	w := s.do(t, http.MethodPost, "/api/v1/provider", []byte(`{"provider":"nope"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/provider", []byte(`{"provider":"groq"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "GROQ_API_KEY")

	w = s.do(t, http.MethodPost, "/api/v1/provider", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/provider", []byte(`{"provider":"Ollama (FREE - Local)"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/provider", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":true`)
	assert.Contains(t, w.Body.String(), `"context_budget":20000`)
}

func TestConnectProvider_Unavailable(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodPost, "/api/v1/provider", []byte(`{"provider":"ollama"}`), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "backend_unavailable", body["kind"])
	assert.Nil(t, s.ws.Provider())
}

func TestSections_RequireDocument(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodGet, "/api/v1/sections", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"bull_bear_cases"`)

	w = s.do(t, http.MethodGet, "/api/v1/sections/quick_stats", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/reports/current", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSectionAndFlow(t *testing.T) {
	s := newTestServer(t, newOllama(t).URL, nil)
	_, err := s.ws.Connect(context.Background(), "ollama", "")
	require.NoError(t, err)
	s.ws.NewDocument(context.Background(), "acme-2024.pdf", "annual report", 4)

	w := s.do(t, http.MethodGet, "/api/v1/sections/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sections/business_model_map", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view service.SectionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.False(t, view.Failed)
	require.NotNil(t, view.Flow)
	assert.False(t, view.Flow.Fallback)

	w = s.do(t, http.MethodGet, "/api/v1/sections/business_model_map?format=markdown", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Cloud revenue"))

	w = s.do(t, http.MethodGet, "/api/v1/flow?format=svg", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Cloud revenue")

	w = s.do(t, http.MethodGet, "/api/v1/flow?format=png", nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/reports/current", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cached_sections":["business_model_map"]`)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["sessions"])
	assert.EqualValues(t, 1, body["total_calls"])
}

func TestFlow_Sample(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodGet, "/api/v1/flow?sample=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["fallback"])

	w = s.do(t, http.MethodGet, "/api/v1/flow?sample=true&format=gif", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/flow", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("just text"))
	require.NoError(t, mw.Close())

	w := s.do(t, http.MethodPost, "/api/v1/reports", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/reports", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResearch_Disabled(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", nil)

	w := s.do(t, http.MethodPost, "/api/v1/research", nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAuth_AppliedWhenKeysConfigured(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", func(cfg *config.Config) {
		cfg.Auth.APIKeys = []string{"secret"}
		cfg.Auth.AdminKeys = []string{"admin"}
	})

	w := s.do(t, http.MethodGet, "/api/v1/sections", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sections", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Health stays public.
	w = s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

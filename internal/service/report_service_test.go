package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/flow"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

const revenueAnswer = "Streaming revenue: $500 million\nAdvertising revenue: $300 million"

// newOllama fakes a healthy local daemon that answers by prompt content.
func newOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		answer := "## Summary\n\nA solid business."
		switch {
		case strings.Contains(req.Prompt, "Extract ONLY the company name"):
			answer = "Acme Corp"
		case strings.Contains(req.Prompt, "Revenue Breakdown"):
			answer = revenueAnswer
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": answer})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, ollamaURL string, connect bool) *ReportService {
	t.Helper()
	cfg := config.Default().LLM
	cfg.Ollama.BaseURL = ollamaURL
	ws := analysis.NewWorkspace(analysis.WorkspaceDeps{
		Factory: llm.NewFactory(cfg, zap.NewNop()),
		Logger:  zap.NewNop(),
	})
	if connect {
		_, err := ws.Connect(context.Background(), "ollama", "")
		require.NoError(t, err)
	}
	return NewReportService(ws, nil, zap.NewNop())
}

func TestSection_RendersAnalysis(t *testing.T) {
	svc := newTestService(t, newOllama(t).URL, true)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	view, err := svc.Section(ctx, model.SectionQuickStats)
	require.NoError(t, err)
	assert.Equal(t, "Quick Stats", view.Title)
	assert.False(t, view.Failed)
	assert.False(t, view.Cached)
	assert.Contains(t, view.HTML, "<h2>Summary</h2>")
	assert.Nil(t, view.Flow)

	again, err := svc.Section(ctx, model.SectionQuickStats)
	require.NoError(t, err)
	assert.True(t, again.Cached)
}

func TestSection_BusinessModelCarriesFlow(t *testing.T) {
	svc := newTestService(t, newOllama(t).URL, true)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	view, err := svc.Section(ctx, model.SectionBusinessModelMap)
	require.NoError(t, err)
	require.NotNil(t, view.Flow)
	assert.False(t, view.Flow.Fallback)

	labels := make([]string, 0, len(view.Flow.Nodes))
	for _, n := range view.Flow.Nodes {
		labels = append(labels, n.Label)
	}
	assert.Contains(t, labels, flow.AggregatorLabel)
	assert.Contains(t, labels, "Streaming revenue")
	assert.Contains(t, labels, "Advertising revenue")
}

func TestSection_WithoutProviderShowsMessage(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", false)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	view, err := svc.Section(ctx, model.SectionBusinessModelMap)
	require.NoError(t, err)
	assert.True(t, view.Failed)
	assert.Equal(t, "configuration", view.ErrorKind)
	assert.Equal(t, analysis.NotConfiguredMessage, view.Markdown)
	require.NotNil(t, view.Flow)
	assert.True(t, view.Flow.Fallback)
}

func TestSection_Errors(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", false)
	ctx := context.Background()

	_, err := svc.Section(ctx, model.SectionQuickStats)
	assert.ErrorIs(t, err, analysis.ErrNoDocument)

	svc.Workspace().NewDocument(ctx, "acme.pdf", "text", 1)
	_, err = svc.Section(ctx, model.SectionKey("valuation"))
	assert.ErrorIs(t, err, analysis.ErrUnknownSection)
}

func TestFlowGraph_Sample(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", false)

	g, err := svc.FlowGraph(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, g.Fallback)
	assert.Equal(t, flow.SampleTitle, g.Title)

	_, err = svc.FlowGraph(context.Background(), false)
	assert.ErrorIs(t, err, analysis.ErrNoDocument)
}

func TestDiagram(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", false)

	svg, contentType, err := svc.Diagram(flow.Sample(), FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", contentType)
	assert.True(t, strings.HasPrefix(string(svg), "<svg"))

	_, _, err = svc.Diagram(flow.Sample(), FormatPNG)
	assert.ErrorIs(t, err, ErrRasterizerUnavailable)

	_, _, err = svc.Diagram(flow.Sample(), "gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngest_RejectsNonPDF(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", false)

	_, err := svc.Ingest(context.Background(), "notes.txt", []byte("plain text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")

	_, err = svc.Workspace().Session()
	assert.ErrorIs(t, err, analysis.ErrNoDocument, "a failed upload leaves no session")
}

func TestExport(t *testing.T) {
	svc := newTestService(t, newOllama(t).URL, true)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	fs, err := storage.NewFileSystem(t.TempDir())
	require.NoError(t, err)

	written, err := svc.Export(ctx, fs, []model.SectionKey{model.SectionQuickStats, model.SectionBusinessModelMap})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.md", "report.html", "business_model.svg"}, written)

	md, err := fs.Read("report.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Acme Corp Fundamentals Report")
	assert.Contains(t, string(md), "## 1. Quick Stats")
	assert.Contains(t, string(md), "## 2. Business Model Map")
	assert.Contains(t, string(md), "_Source: acme.pdf_")

	page, err := fs.Read("report.html")
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Acme Corp Fundamentals Report</title>")
}

func TestExport_WithoutFlowSection(t *testing.T) {
	svc := newTestService(t, newOllama(t).URL, true)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	fs, err := storage.NewFileSystem(t.TempDir())
	require.NoError(t, err)

	written, err := svc.Export(ctx, fs, []model.SectionKey{model.SectionQuickStats})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.md", "report.html"}, written)
	assert.False(t, fs.Exists("business_model.svg"))
}

func TestExport_FailedFlowSectionAnalyzedOnce(t *testing.T) {
	var flowCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Prompt, "Revenue Breakdown") {
			flowCalls.Add(1)
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Acme Corp"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := newTestService(t, srv.URL, true)
	ctx := context.Background()
	svc.Workspace().NewDocument(ctx, "acme.pdf", "annual report text", 3)

	fs, err := storage.NewFileSystem(t.TempDir())
	require.NoError(t, err)

	written, err := svc.Export(ctx, fs, []model.SectionKey{model.SectionBusinessModelMap})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.md", "report.html", "business_model.svg"}, written)
	assert.Equal(t, int32(1), flowCalls.Load(), "a failed section is not re-run within one export")

	svg, err := fs.Read("business_model.svg")
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Studios", "the failed section falls back to the illustrative diagram")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/flow"
	"github.com/fleveque/fundamentals-analyzer/internal/ingest"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
	"github.com/fleveque/fundamentals-analyzer/internal/report"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

// Diagram formats accepted by Diagram.
const (
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

var (
	// ErrUnsupportedFormat is returned for an unknown diagram format.
	ErrUnsupportedFormat = errors.New("unsupported diagram format")
	// ErrRasterizerUnavailable is returned for PNG output when no rasterizer is configured.
	ErrRasterizerUnavailable = errors.New("PNG output is not available")
)

// SectionView is a section ready for display. When Failed is set, Markdown
// holds the human-readable failure message instead of an analysis.
type SectionView struct {
	Key       model.SectionKey `json:"key"`
	Title     string           `json:"title"`
	Markdown  string           `json:"markdown"`
	HTML      string           `json:"html,omitempty"`
	Cached    bool             `json:"cached"`
	Failed    bool             `json:"failed"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Flow      *flow.Graph      `json:"flow,omitempty"`
}

// ReportService drives a Workspace for the HTTP and CLI front-ends.
type ReportService struct {
	workspace  *analysis.Workspace
	rasterizer *Rasterizer
	logger     *zap.Logger
}

// NewReportService creates a ReportService. rasterizer may be nil, in which
// case PNG diagrams are unavailable.
func NewReportService(ws *analysis.Workspace, rasterizer *Rasterizer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		workspace:  ws,
		rasterizer: rasterizer,
		logger:     logger,
	}
}

// Workspace returns the underlying workspace.
func (s *ReportService) Workspace() *analysis.Workspace {
	return s.workspace
}

// Ingest extracts the text of an uploaded PDF and starts a new session for
// it. The previous session and its cache are discarded.
func (s *ReportService) Ingest(ctx context.Context, filename string, data []byte) (model.SessionInfo, error) {
	doc, err := ingest.ExtractBytes(data)
	if err != nil {
		s.logger.Warn("PDF extraction failed", zap.String("filename", filename), zap.Error(err))
		return model.SessionInfo{}, fmt.Errorf("extracting %s: %w", filename, err)
	}
	return s.workspace.NewDocument(ctx, filename, doc.Text, doc.Pages).Info(), nil
}

// IngestFile is Ingest for a PDF on disk.
func (s *ReportService) IngestFile(ctx context.Context, path string) (model.SessionInfo, error) {
	doc, err := ingest.ExtractFile(path)
	if err != nil {
		s.logger.Warn("PDF extraction failed", zap.String("path", path), zap.Error(err))
		return model.SessionInfo{}, fmt.Errorf("extracting %s: %w", path, err)
	}
	return s.workspace.NewDocument(ctx, filepath.Base(path), doc.Text, doc.Pages).Info(), nil
}

// Section analyzes (or recalls) one section of the current document.
//
// Provider failures are not returned as errors: the view carries the
// failure text with Failed set. Errors are reserved for requests that cannot
// be served at all (no document, unknown section).
func (s *ReportService) Section(ctx context.Context, key model.SectionKey) (SectionView, error) {
	sp, ok := s.workspace.Prompts().Get(key)
	if !ok {
		return SectionView{}, fmt.Errorf("%w: %s", analysis.ErrUnknownSection, key)
	}
	sess, err := s.workspace.Session()
	if err != nil {
		return SectionView{}, err
	}
	_, cached := sess.Cached(key)

	text, err := s.workspace.AnalyzeSection(ctx, key)
	var llmErr *llm.Error
	if err != nil && !errors.As(err, &llmErr) {
		return SectionView{}, err
	}

	view := SectionView{
		Key:      key,
		Title:    sp.Title,
		Markdown: report.CleanMarkdown(text),
		Cached:   cached,
	}
	if llmErr != nil {
		view.Failed = true
		view.ErrorKind = llmErr.Kind.String()
	}
	if view.HTML, err = report.ToHTML(view.Markdown); err != nil {
		s.logger.Warn("rendering section", zap.String("section", string(key)), zap.Error(err))
	}

	if key == model.SectionBusinessModelMap {
		g := flow.Sample()
		if !view.Failed {
			g = flow.Parse(text)
		}
		view.Flow = &g
	}
	return view, nil
}

// FlowGraph returns the business-model flow graph for the current document,
// or the illustrative dataset when sample is set.
func (s *ReportService) FlowGraph(ctx context.Context, sample bool) (flow.Graph, error) {
	if sample {
		return flow.Sample(), nil
	}
	view, err := s.Section(ctx, model.SectionBusinessModelMap)
	if err != nil {
		return flow.Graph{}, err
	}
	return *view.Flow, nil
}

// Diagram renders g as SVG or PNG and returns the bytes and content type.
func (s *ReportService) Diagram(g flow.Graph, format string) ([]byte, string, error) {
	switch format {
	case FormatSVG:
		svg, err := flow.RenderSVG(g, flow.DefaultRenderOptions)
		if err != nil {
			return nil, "", err
		}
		return svg, "image/svg+xml", nil
	case FormatPNG:
		if s.rasterizer == nil {
			return nil, "", ErrRasterizerUnavailable
		}
		svg, err := flow.RenderSVG(g, flow.DefaultRenderOptions)
		if err != nil {
			return nil, "", err
		}
		data, err := s.rasterizer.Rasterize(svg, flow.DefaultRenderOptions.Width)
		if err != nil {
			return nil, "", err
		}
		return data, "image/png", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// BuildReport analyzes keys in order (all sections when keys is empty) and
// assembles them into a report. Failed sections keep their failure text.
func (s *ReportService) BuildReport(ctx context.Context, keys []model.SectionKey) (report.Report, error) {
	rep, _, err := s.buildReport(ctx, keys)
	return rep, err
}

// buildReport also returns the business model flow graph when that section
// is among keys, so callers never analyze it a second time.
func (s *ReportService) buildReport(ctx context.Context, keys []model.SectionKey) (report.Report, *flow.Graph, error) {
	sess, err := s.workspace.Session()
	if err != nil {
		return report.Report{}, nil, err
	}
	if len(keys) == 0 {
		keys = model.AllSections
	}

	company, err := s.workspace.ExtractCompanyName(ctx)
	if err != nil {
		return report.Report{}, nil, err
	}

	rep := report.Report{
		Company:     company,
		Source:      sess.Info().Filename,
		GeneratedAt: time.Now().UTC(),
	}
	var graph *flow.Graph
	for _, key := range keys {
		view, err := s.Section(ctx, key)
		if err != nil {
			return report.Report{}, nil, err
		}
		if view.Flow != nil && graph == nil {
			graph = view.Flow
		}
		rep.Sections = append(rep.Sections, report.Section{Key: key, Title: view.Title, Text: view.Markdown})
	}
	return rep, graph, nil
}

// Export builds the report and writes it into fs, along with the flow
// diagram when the business model section is included. It returns the
// names of the files written. A PNG that cannot be rasterized is skipped
// with a warning.
func (s *ReportService) Export(ctx context.Context, fs *storage.FileSystem, keys []model.SectionKey) ([]string, error) {
	rep, g, err := s.buildReport(ctx, keys)
	if err != nil {
		return nil, err
	}

	var written []string
	write := func(name string, data []byte) error {
		if err := fs.Write(name, data); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	}

	if err := write("report.md", []byte(rep.Markdown())); err != nil {
		return written, err
	}
	page, err := rep.HTML()
	if err != nil {
		return written, err
	}
	if err := write("report.html", []byte(page)); err != nil {
		return written, err
	}

	if g == nil {
		return written, nil
	}
	svg, _, err := s.Diagram(*g, FormatSVG)
	if err != nil {
		return written, err
	}
	if err := write("business_model.svg", svg); err != nil {
		return written, err
	}
	if s.rasterizer != nil {
		png, _, err := s.Diagram(*g, FormatPNG)
		if err != nil {
			s.logger.Warn("skipping PNG diagram", zap.Error(err))
			return written, nil
		}
		if err := write("business_model.png", png); err != nil {
			return written, err
		}
	}
	return written, nil
}

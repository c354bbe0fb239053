package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
)

// ReportHandler serves document upload, section analysis and the flow diagram.
type ReportHandler struct {
	svc            *service.ReportService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewReportHandler creates a new ReportHandler. maxUploadMB caps the PDF size.
func NewReportHandler(svc *service.ReportService, maxUploadMB int, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		svc:            svc,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
	}
}

// Upload ingests a PDF and starts a new session, discarding the previous one.
// Route: POST /api/v1/reports (multipart field "file")
func (h *ReportHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	info, err := h.svc.Ingest(c.Request.Context(), fh.Filename, data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": info})
}

// Current describes the loaded document and which sections are cached.
// Route: GET /api/v1/reports/current
func (h *ReportHandler) Current(c *gin.Context) {
	s, err := h.svc.Workspace().Session()
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":         s.Info(),
		"cached_sections": s.CachedSections(),
	})
}

type researchRequest struct {
	Company string `json:"company"`
}

// EnableResearch turns on web research for the current session.
// Route: POST /api/v1/research {"company": "..."}
func (h *ReportHandler) EnableResearch(c *gin.Context) {
	var req researchRequest
	// An empty body is fine: the company is extracted from the document.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	company, err := h.svc.Workspace().EnableResearch(c.Request.Context(), req.Company)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"research": true, "company": company})
}

// Sections lists the section catalog.
// Route: GET /api/v1/sections
func (h *ReportHandler) Sections(c *gin.Context) {
	type entry struct {
		Key   model.SectionKey `json:"key"`
		Title string           `json:"title"`
	}
	sections := h.svc.Workspace().Prompts().Sections()
	out := make([]entry, 0, len(sections))
	for _, s := range sections {
		out = append(out, entry{Key: s.Key, Title: s.Title})
	}
	c.JSON(http.StatusOK, gin.H{"sections": out})
}

// Section analyzes one section of the current document.
// Route: GET /api/v1/sections/:key?format=json|markdown|html
func (h *ReportHandler) Section(c *gin.Context) {
	key := model.SectionKey(c.Param("key"))
	view, err := h.svc.Section(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(view.Markdown))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(view.HTML))
	case "json":
		c.JSON(http.StatusOK, view)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, markdown or html"})
	}
}

// Flow returns the business-model flow graph as JSON, SVG or PNG.
// Route: GET /api/v1/flow?format=json|svg|png&sample=true
func (h *ReportHandler) Flow(c *gin.Context) {
	sample := c.Query("sample") == "true"
	g, err := h.svc.FlowGraph(c.Request.Context(), sample)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", service.FormatJSON))
	if format == service.FormatJSON {
		c.JSON(http.StatusOK, g)
		return
	}
	data, contentType, err := h.svc.Diagram(g, format)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

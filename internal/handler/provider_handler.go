package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
)

// ProviderHandler lists the provider catalog and switches the active provider.
type ProviderHandler struct {
	workspace *analysis.Workspace
	secrets   *config.SecretStore
	logger    *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(ws *analysis.Workspace, secrets *config.SecretStore, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{workspace: ws, secrets: secrets, logger: logger}
}

type providerEntry struct {
	llm.Descriptor
	KeyConfigured bool `json:"key_configured"`
	Active        bool `json:"active"`
}

type providerStatus struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	Available     bool   `json:"available"`
	Diagnostic    string `json:"diagnostic,omitempty"`
	ContextBudget int    `json:"context_budget"`
}

func statusOf(p *llm.Provider) providerStatus {
	return providerStatus{
		ID:            p.ID(),
		Name:          p.Name(),
		Model:         p.ModelName(),
		Available:     p.Available(),
		Diagnostic:    p.Diagnostic(),
		ContextBudget: p.ContextBudget(),
	}
}

// List returns the catalog in display order.
// Route: GET /api/v1/providers
func (h *ProviderHandler) List(c *gin.Context) {
	active := ""
	if p := h.workspace.Provider(); p != nil {
		active = p.ID()
	}

	entries := make([]providerEntry, 0, len(llm.Catalog()))
	for _, d := range llm.Catalog() {
		entries = append(entries, providerEntry{
			Descriptor:    d,
			KeyConfigured: !d.RequiresKey || h.secrets.Resolve(d.KeyEnvVar) != "",
			Active:        d.ID == active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"providers": entries})
}

// Current returns the active provider.
// Route: GET /api/v1/provider
func (h *ProviderHandler) Current(c *gin.Context) {
	p := h.workspace.Provider()
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "message": analysis.NotConfiguredMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "provider": statusOf(p)})
}

type connectRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
}

// Connect makes a provider active. An unavailable provider answers 503 with
// its diagnostic; the previous provider stays active.
// Route: POST /api/v1/provider
func (h *ProviderHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required"})
		return
	}

	p, err := h.workspace.Connect(c.Request.Context(), req.Provider, req.APIKey)
	if err != nil {
		h.logger.Warn("connecting provider", zap.String("provider", req.Provider), zap.Error(err))
		body := gin.H{"error": err.Error(), "kind": llm.KindOf(err).String()}
		if p != nil {
			body["provider"] = statusOf(p)
		}
		c.AbortWithStatusJSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "provider": statusOf(p)})
}

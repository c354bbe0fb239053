// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	workspace *analysis.Workspace
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(ws *analysis.Workspace) *HealthHandler {
	return &HealthHandler{workspace: ws}
}

// Healthz responds with service status plus whether a provider is connected
// and a document is loaded.
func (h *HealthHandler) Healthz(c *gin.Context) {
	_, err := h.workspace.Session()
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"service":            "fundamentals-analyzer",
		"provider_connected": h.workspace.Provider() != nil,
		"document_loaded":    err == nil,
	})
}

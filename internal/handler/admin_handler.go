package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	sessionRepo storage.SessionRepository
	llmCallRepo storage.LLMCallRepository
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessionRepo storage.SessionRepository, llmCallRepo storage.LLMCallRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sessionRepo: sessionRepo,
		llmCallRepo: llmCallRepo,
		logger:      logger,
	}
}

// Stats returns session and provider call counts from the ledger.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, err := h.sessionRepo.Count(ctx)
	if err != nil {
		h.logger.Error("counting sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	calls, err := h.llmCallRepo.Stats(ctx)
	if err != nil {
		h.logger.Error("computing call stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":            sessions,
		"sessions_with_calls": calls.Sessions,
		"total_calls":         calls.TotalCalls,
		"failures":            calls.Failures,
		"by_provider":         calls.ByProvider,
	})
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRasterizerUnavailable), errors.Is(err, analysis.ErrResearchDisabled):
		return http.StatusNotImplemented
	}
	switch llm.KindOf(err) {
	case llm.KindConfiguration:
		return http.StatusBadRequest
	case llm.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	case llm.KindTransient:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// abortWithError writes {"error": ...}. Internal errors are logged and
// hidden from the client.
func abortWithError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

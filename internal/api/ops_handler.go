package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/doc-indexer/internal/service"
)

// Answerer defines the question answering operation.
type Answerer interface {
	Answer(ctx context.Context, question string) (*service.Answer, error)
}

// WorkerStats exposes queue and worker statistics.
type WorkerStats interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

// OpsHandler handles the ask endpoint and operational endpoints.
type OpsHandler struct {
	rag    Answerer
	worker WorkerStats
}

// NewOpsHandler creates a new ops handler.
func NewOpsHandler(rag Answerer, worker WorkerStats) *OpsHandler {
	return &OpsHandler{rag: rag, worker: worker}
}

type askRequest struct {
	Question string `binding:"required" json:"question"`
}

// Ask handles POST /api/v1/ask.
func (h *OpsHandler) Ask(c *gin.Context) {
	var req askRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	answer, answerErr := h.rag.Answer(c.Request.Context(), req.Question)
	if answerErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": answerErr.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// JobStats handles GET /api/v1/jobs/stats.
func (h *OpsHandler) JobStats(c *gin.Context) {
	stats, statsErr := h.worker.GetStats(c.Request.Context())
	if statsErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": statsErr.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

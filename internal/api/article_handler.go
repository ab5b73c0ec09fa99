// Package api provides the HTTP handlers for the document indexing service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/service"
)

// ArticleOps defines the article operations the handler needs.
type ArticleOps interface {
	Create(ctx context.Context, title, content string) (*domain.Article, error)
	Update(ctx context.Context, id int64, content string) (*domain.Article, error)
	Get(ctx context.Context, id int64) (*domain.Article, error)
	Count(ctx context.Context) (int64, error)
	KeywordSearch(ctx context.Context, term string, limit int) ([]domain.Article, error)
	SemanticSearch(ctx context.Context, query string, opts service.SearchOptions) ([]domain.Article, error)
}

// ArticleHandler handles article HTTP requests.
type ArticleHandler struct {
	svc ArticleOps
}

// NewArticleHandler creates a new article handler.
func NewArticleHandler(svc ArticleOps) *ArticleHandler {
	return &ArticleHandler{svc: svc}
}

type createArticleRequest struct {
	Title   string `binding:"required" json:"title"`
	Content string `binding:"required" json:"content"`
}

type updateContentRequest struct {
	Content string `binding:"required" json:"content"`
}

// CreateArticle handles POST /api/v1/articles.
func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	var req createArticleRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	article, createErr := h.svc.Create(c.Request.Context(), req.Title, req.Content)
	if createErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": createErr.Error()})
		return
	}

	c.JSON(http.StatusCreated, article)
}

// GetArticle handles GET /api/v1/articles/:id.
func (h *ArticleHandler) GetArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	article, getErr := h.svc.Get(c.Request.Context(), id)
	if getErr != nil {
		respondError(c, getErr)
		return
	}

	c.JSON(http.StatusOK, article)
}

// UpdateArticle handles PUT /api/v1/articles/:id.
func (h *ArticleHandler) UpdateArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateContentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	article, updateErr := h.svc.Update(c.Request.Context(), id, req.Content)
	if updateErr != nil {
		respondError(c, updateErr)
		return
	}

	c.JSON(http.StatusOK, article)
}

// Search handles GET /api/v1/search.
// Query parameters: q (required), mode (semantic|keyword), limit, dual, rerank.
func (h *ArticleHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	if c.Query("mode") == "keyword" {
		results, searchErr := h.svc.KeywordSearch(c.Request.Context(), query, limit)
		if searchErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": searchErr.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
		return
	}

	opts := service.SearchOptions{Limit: limit}
	if raw, ok := c.GetQuery("dual"); ok {
		dual := raw == "true"
		opts.DualQuery = &dual
	}
	if raw, ok := c.GetQuery("rerank"); ok {
		rerank := raw == "true"
		opts.Rerank = &rerank
	}

	results, searchErr := h.svc.SemanticSearch(c.Request.Context(), query, opts)
	if searchErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": searchErr.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// pathID parses the :id path parameter, writing a 400 on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, parseErr := strconv.ParseInt(c.Param("id"), 10, 64)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidReference), errors.Is(err, domain.ErrBrokenThread):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

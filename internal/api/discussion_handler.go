package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/service"
)

// DiscussionOps defines the discussion operations the handler needs.
type DiscussionOps interface {
	Create(ctx context.Context, req service.CreateDiscussionRequest) (*domain.Discussion, error)
	Update(ctx context.Context, id int64, content string) (*domain.Discussion, error)
	Get(ctx context.Context, id int64) (*domain.Discussion, error)
	Threaded(ctx context.Context, articleID int64) ([]domain.ThreadedDiscussion, error)
}

// DiscussionHandler handles discussion HTTP requests.
type DiscussionHandler struct {
	svc DiscussionOps
}

// NewDiscussionHandler creates a new discussion handler.
func NewDiscussionHandler(svc DiscussionOps) *DiscussionHandler {
	return &DiscussionHandler{svc: svc}
}

type createDiscussionRequest struct {
	Title     string  `binding:"required" json:"title"`
	Content   string  `binding:"required" json:"content"`
	ArticleID *int64  `json:"related_article_id"`
	ParentID  *int64  `json:"responds_to_id"`
	Section   *string `json:"discussion_section"`
}

// CreateDiscussion handles POST /api/v1/discussions.
func (h *DiscussionHandler) CreateDiscussion(c *gin.Context) {
	var req createDiscussionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	discussion, createErr := h.svc.Create(c.Request.Context(), service.CreateDiscussionRequest{
		Title:     req.Title,
		Content:   req.Content,
		ArticleID: req.ArticleID,
		ParentID:  req.ParentID,
		Section:   req.Section,
	})
	if createErr != nil {
		respondError(c, createErr)
		return
	}

	c.JSON(http.StatusCreated, discussion)
}

// GetDiscussion handles GET /api/v1/discussions/:id.
func (h *DiscussionHandler) GetDiscussion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	discussion, getErr := h.svc.Get(c.Request.Context(), id)
	if getErr != nil {
		respondError(c, getErr)
		return
	}

	c.JSON(http.StatusOK, discussion)
}

// UpdateDiscussion handles PUT /api/v1/discussions/:id.
func (h *DiscussionHandler) UpdateDiscussion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateContentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	discussion, updateErr := h.svc.Update(c.Request.Context(), id, req.Content)
	if updateErr != nil {
		respondError(c, updateErr)
		return
	}

	c.JSON(http.StatusOK, discussion)
}

// ListArticleDiscussions handles GET /api/v1/articles/:id/discussions.
// It returns the forest flattened in display order with nesting depths.
func (h *DiscussionHandler) ListArticleDiscussions(c *gin.Context) {
	articleID, ok := pathID(c)
	if !ok {
		return
	}

	threaded, listErr := h.svc.Threaded(c.Request.Context(), articleID)
	if listErr != nil {
		respondError(c, listErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"discussions": threaded, "count": len(threaded)})
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// ErrInvalidReference signals a discussion create request that does not link
// to exactly one of an article or a parent discussion.
var ErrInvalidReference = errors.New("discussion must reference exactly one of article or parent")

// DiscussionRepository is the discussion persistence surface.
type DiscussionRepository interface {
	CreateDiscussion(ctx context.Context, d *domain.Discussion) (int64, error)
	GetDiscussion(ctx context.Context, id int64) (*domain.Discussion, error)
	UpdateDiscussionContent(ctx context.Context, id int64, content string) error
	ListDiscussionsByArticle(ctx context.Context, articleID int64) ([]domain.Discussion, error)
	CountDiscussions(ctx context.Context) (int64, error)
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
}

// CreateDiscussionRequest carries a new reply. Exactly one of ArticleID or
// ParentID must be set.
type CreateDiscussionRequest struct {
	Title     string
	Content   string
	ArticleID *int64
	ParentID  *int64
	Section   *string
}

// DiscussionService handles discussion CRUD, reference resolution, and the
// threaded view.
type DiscussionService struct {
	discussions DiscussionRepository
	jobs        Enqueuer
	logger      logger.Logger
}

// NewDiscussionService creates a discussion service.
func NewDiscussionService(discussions DiscussionRepository, jobs Enqueuer, log logger.Logger) *DiscussionService {
	return &DiscussionService{discussions: discussions, jobs: jobs, logger: log}
}

// Create stores a new reply, then schedules its embedding and a
// re-classification of the owning article's forest.
func (s *DiscussionService) Create(ctx context.Context, req CreateDiscussionRequest) (*domain.Discussion, error) {
	if (req.ArticleID == nil) == (req.ParentID == nil) {
		return nil, ErrInvalidReference
	}

	articleID, resolveErr := s.resolveArticleID(ctx, req)
	if resolveErr != nil {
		return nil, resolveErr
	}

	id, createErr := s.discussions.CreateDiscussion(ctx, &domain.Discussion{
		Title:     req.Title,
		Content:   req.Content,
		ArticleID: req.ArticleID,
		ParentID:  req.ParentID,
		Section:   req.Section,
	})
	if createErr != nil {
		return nil, createErr
	}

	if enqueueErr := s.jobs.EnqueueEmbed(ctx, domain.TargetDiscussion, id); enqueueErr != nil {
		return nil, enqueueErr
	}
	if enqueueErr := s.jobs.EnqueueClassify(ctx, articleID); enqueueErr != nil {
		return nil, enqueueErr
	}

	return s.discussions.GetDiscussion(ctx, id)
}

// resolveArticleID validates the upward reference and returns the owning
// article id.
func (s *DiscussionService) resolveArticleID(ctx context.Context, req CreateDiscussionRequest) (int64, error) {
	if req.ArticleID != nil {
		if _, err := s.discussions.GetArticle(ctx, *req.ArticleID); err != nil {
			return 0, fmt.Errorf("referenced article %d: %w", *req.ArticleID, err)
		}
		return *req.ArticleID, nil
	}

	parent, parentErr := s.discussions.GetDiscussion(ctx, *req.ParentID)
	if parentErr != nil {
		return 0, fmt.Errorf("referenced parent %d: %w", *req.ParentID, parentErr)
	}

	return domain.ResolveOwningArticleID(parent, func(id int64) (*domain.Discussion, error) {
		return s.discussions.GetDiscussion(ctx, id)
	})
}

// Update replaces a reply's content and schedules re-embedding.
func (s *DiscussionService) Update(ctx context.Context, id int64, content string) (*domain.Discussion, error) {
	if updateErr := s.discussions.UpdateDiscussionContent(ctx, id, content); updateErr != nil {
		return nil, updateErr
	}

	if enqueueErr := s.jobs.EnqueueEmbed(ctx, domain.TargetDiscussion, id); enqueueErr != nil {
		return nil, enqueueErr
	}

	return s.discussions.GetDiscussion(ctx, id)
}

// Get loads one discussion.
func (s *DiscussionService) Get(ctx context.Context, id int64) (*domain.Discussion, error) {
	return s.discussions.GetDiscussion(ctx, id)
}

// Count returns the total number of discussions.
func (s *DiscussionService) Count(ctx context.Context) (int64, error) {
	return s.discussions.CountDiscussions(ctx)
}

// Threaded returns the article's forest flattened in display order with
// nesting depths.
func (s *DiscussionService) Threaded(ctx context.Context, articleID int64) ([]domain.ThreadedDiscussion, error) {
	if _, err := s.discussions.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}

	discussions, listErr := s.discussions.ListDiscussionsByArticle(ctx, articleID)
	if listErr != nil {
		return nil, listErr
	}

	return domain.BuildThread(discussions), nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// classificationSource is stamped on discussions labelled by the worker.
const classificationSource = "worker:llm"

// ClassifierSource labels a discussion forest against its article.
type ClassifierSource interface {
	Classify(ctx context.Context, articleTitle, articleContent string, discussions []domain.Discussion) map[int64]domain.Classification
}

// ClassifyHandler executes DISCUSSION_CLASSIFY jobs: it flattens the
// article's discussion forest, classifies every reply, and persists the
// labels one row at a time. Partial writes after a crash are fine because a
// re-run of the same job corrects them.
type ClassifyHandler struct {
	documents  DocumentStore
	classifier ClassifierSource
	logger     logger.Logger
}

// NewClassifyHandler creates the classify handler.
func NewClassifyHandler(documents DocumentStore, classifier ClassifierSource, log logger.Logger) *ClassifyHandler {
	return &ClassifyHandler{documents: documents, classifier: classifier, logger: log}
}

// Handle classifies the full discussion forest of the job's article.
func (h *ClassifyHandler) Handle(ctx context.Context, job *domain.IndexingJob) error {
	if job.TargetType != domain.TargetArticle {
		return Permanent("classify job targets "+string(job.TargetType)+", want article", nil)
	}

	article, loadErr := h.documents.GetArticle(ctx, job.TargetID)
	if errors.Is(loadErr, domain.ErrNotFound) {
		return Permanent(fmt.Sprintf("article %d not found", job.TargetID), loadErr)
	}
	if loadErr != nil {
		return fmt.Errorf("load article: %w", loadErr)
	}

	discussions, listErr := h.documents.ListDiscussionsByArticle(ctx, job.TargetID)
	if listErr != nil {
		return fmt.Errorf("list discussions: %w", listErr)
	}
	if len(discussions) == 0 {
		return nil
	}

	flattened := domain.FlattenForest(discussions)
	classified := h.classifier.Classify(ctx, article.Title, article.Content, flattened)
	classifiedAt := time.Now().UTC()

	for _, d := range flattened {
		classification, ok := classified[d.ID]
		if !ok {
			classification = domain.FallbackClassification()
		}

		updateErr := h.documents.UpdateDiscussionClassification(ctx, d.ID, classification, classificationSource, classifiedAt)
		if updateErr != nil {
			return fmt.Errorf("persist classification for discussion %d: %w", d.ID, updateErr)
		}
	}

	h.logger.Info("discussion forest classified",
		logger.Int64("article_id", job.TargetID),
		logger.Int("discussions", len(flattened)))
	return nil
}

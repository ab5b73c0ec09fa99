package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/vectorstore"
)

// embeddingSource is stamped on documents indexed by the worker.
const embeddingSource = "worker"

// DocumentStore is the persistence surface the handlers need.
type DocumentStore interface {
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
	GetDiscussion(ctx context.Context, id int64) (*domain.Discussion, error)
	StampArticleEmbedding(ctx context.Context, id int64, stamp domain.EmbeddingStamp) error
	StampDiscussionEmbedding(ctx context.Context, id int64, stamp domain.EmbeddingStamp) error
	ListDiscussionsByArticle(ctx context.Context, articleID int64) ([]domain.Discussion, error)
	UpdateDiscussionClassification(ctx context.Context, id int64, c domain.Classification, source string, classifiedAt time.Time) error
}

// Summarizer condenses long documents before embedding.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) string
}

// VariantSource renders a document into embedding variants.
type VariantSource interface {
	TransformForArticle(ctx context.Context, title, content string) []domain.EmbeddingVariant
	TransformForDiscussion(ctx context.Context, articleTitle, discussionTitle, content string) []domain.EmbeddingVariant
}

// EmbedHandler executes EMBED_UPSERT jobs: it materializes the document text,
// generates variants, and upserts them into the vector index.
type EmbedHandler struct {
	documents  DocumentStore
	summarizer Summarizer
	variants   VariantSource
	vectors    vectorstore.Store

	embeddingModel     string
	summarizeThreshold int
	logger             logger.Logger
}

// NewEmbedHandler creates the embed handler.
func NewEmbedHandler(
	documents DocumentStore,
	summarizer Summarizer,
	variants VariantSource,
	vectors vectorstore.Store,
	embeddingModel string,
	summarizeThreshold int,
	log logger.Logger,
) *EmbedHandler {
	return &EmbedHandler{
		documents:          documents,
		summarizer:         summarizer,
		variants:           variants,
		vectors:            vectors,
		embeddingModel:     embeddingModel,
		summarizeThreshold: summarizeThreshold,
		logger:             log,
	}
}

// Handle embeds the job's target document.
func (h *EmbedHandler) Handle(ctx context.Context, job *domain.IndexingJob) error {
	switch job.TargetType {
	case domain.TargetArticle:
		return h.embedArticle(ctx, job.TargetID)
	case domain.TargetDiscussion:
		return h.embedDiscussion(ctx, job.TargetID)
	default:
		return Permanent("unknown target type "+string(job.TargetType), nil)
	}
}

func (h *EmbedHandler) embedArticle(ctx context.Context, articleID int64) error {
	article, loadErr := h.documents.GetArticle(ctx, articleID)
	if errors.Is(loadErr, domain.ErrNotFound) {
		return Permanent(fmt.Sprintf("article %d not found", articleID), loadErr)
	}
	if loadErr != nil {
		return fmt.Errorf("load article: %w", loadErr)
	}

	text := h.materialize(ctx, article.Title, article.Content)
	hash := domain.HashContent(text)
	if h.alreadyEmbedded(article.Embedding, hash) {
		h.logger.Debug("article embedding is current, skipping upsert",
			logger.Int64("article_id", articleID))
		return nil
	}

	variants := h.variants.TransformForArticle(ctx, article.Title, text)
	meta := domain.VariantMetadata{SampleType: domain.TargetArticle}

	if upsertErr := h.vectors.UpsertVariants(ctx, articleID, article.Title, variants, meta); upsertErr != nil {
		return fmt.Errorf("upsert article variants: %w", upsertErr)
	}

	stamp := h.stamp(hash)
	if stampErr := h.documents.StampArticleEmbedding(ctx, articleID, stamp); stampErr != nil {
		return fmt.Errorf("stamp article embedding: %w", stampErr)
	}

	h.logger.Info("article embedded",
		logger.Int64("article_id", articleID),
		logger.Int("variants", len(variants)))
	return nil
}

func (h *EmbedHandler) embedDiscussion(ctx context.Context, discussionID int64) error {
	discussion, loadErr := h.documents.GetDiscussion(ctx, discussionID)
	if errors.Is(loadErr, domain.ErrNotFound) {
		return Permanent(fmt.Sprintf("discussion %d not found", discussionID), loadErr)
	}
	if loadErr != nil {
		return fmt.Errorf("load discussion: %w", loadErr)
	}

	articleID, resolveErr := domain.ResolveOwningArticleID(discussion, func(id int64) (*domain.Discussion, error) {
		return h.documents.GetDiscussion(ctx, id)
	})
	if errors.Is(resolveErr, domain.ErrBrokenThread) {
		return Permanent(fmt.Sprintf("discussion %d has no resolvable article", discussionID), resolveErr)
	}
	if resolveErr != nil {
		return fmt.Errorf("resolve owning article: %w", resolveErr)
	}

	article, articleErr := h.documents.GetArticle(ctx, articleID)
	if errors.Is(articleErr, domain.ErrNotFound) {
		return Permanent(fmt.Sprintf("owning article %d not found", articleID), articleErr)
	}
	if articleErr != nil {
		return fmt.Errorf("load owning article: %w", articleErr)
	}

	text := h.materialize(ctx, discussion.Title, discussion.Content)
	hash := domain.HashContent(text)
	if h.alreadyEmbedded(discussion.Embedding, hash) {
		h.logger.Debug("discussion embedding is current, skipping upsert",
			logger.Int64("discussion_id", discussionID))
		return nil
	}

	variants := h.variants.TransformForDiscussion(ctx, article.Title, discussion.Title, text)
	meta := domain.VariantMetadata{
		SampleType:        domain.TargetDiscussion,
		RelatedArticleID:  &articleID,
		RespondsToID:      discussion.ParentID,
		DiscussionSection: discussion.Section,
	}

	if upsertErr := h.vectors.UpsertVariants(ctx, discussionID, discussion.Title, variants, meta); upsertErr != nil {
		return fmt.Errorf("upsert discussion variants: %w", upsertErr)
	}

	stamp := h.stamp(hash)
	if stampErr := h.documents.StampDiscussionEmbedding(ctx, discussionID, stamp); stampErr != nil {
		return fmt.Errorf("stamp discussion embedding: %w", stampErr)
	}

	h.logger.Info("discussion embedded",
		logger.Int64("discussion_id", discussionID),
		logger.Int64("article_id", articleID),
		logger.Int("variants", len(variants)))
	return nil
}

// materialize returns the text to embed: a summary for long documents, the
// raw content otherwise.
func (h *EmbedHandler) materialize(ctx context.Context, title, content string) string {
	if len(content) >= h.summarizeThreshold {
		return h.summarizer.Summarize(ctx, title, content)
	}
	return content
}

// alreadyEmbedded reports whether the stored stamp matches the materialized
// text, making the upsert a no-op re-run.
func (h *EmbedHandler) alreadyEmbedded(info domain.EmbeddingInfo, hash string) bool {
	return info.Status == domain.EmbeddingStatusSucceeded &&
		info.ContentHash != nil && *info.ContentHash == hash
}

func (h *EmbedHandler) stamp(hash string) domain.EmbeddingStamp {
	return domain.EmbeddingStamp{
		ContentHash: hash,
		Model:       h.embeddingModel,
		Source:      embeddingSource,
		EmbeddedAt:  time.Now().UTC(),
	}
}

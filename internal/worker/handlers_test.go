package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

// fakeDocs backs the handlers with in-memory documents.
type fakeDocs struct {
	articles    map[int64]*domain.Article
	discussions map[int64]*domain.Discussion

	articleStamps    map[int64]domain.EmbeddingStamp
	discussionStamps map[int64]domain.EmbeddingStamp
	classifications  map[int64]domain.Classification
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		articles:         make(map[int64]*domain.Article),
		discussions:      make(map[int64]*domain.Discussion),
		articleStamps:    make(map[int64]domain.EmbeddingStamp),
		discussionStamps: make(map[int64]domain.EmbeddingStamp),
		classifications:  make(map[int64]domain.Classification),
	}
}

func (f *fakeDocs) GetArticle(_ context.Context, id int64) (*domain.Article, error) {
	if a, ok := f.articles[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocs) GetDiscussion(_ context.Context, id int64) (*domain.Discussion, error) {
	if d, ok := f.discussions[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocs) StampArticleEmbedding(_ context.Context, id int64, stamp domain.EmbeddingStamp) error {
	f.articleStamps[id] = stamp
	return nil
}

func (f *fakeDocs) StampDiscussionEmbedding(_ context.Context, id int64, stamp domain.EmbeddingStamp) error {
	f.discussionStamps[id] = stamp
	return nil
}

func (f *fakeDocs) ListDiscussionsByArticle(_ context.Context, articleID int64) ([]domain.Discussion, error) {
	var result []domain.Discussion
	for _, d := range f.discussions {
		if d.ArticleID != nil && *d.ArticleID == articleID {
			result = append(result, *d)
		} else if d.ParentID != nil {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (f *fakeDocs) UpdateDiscussionClassification(_ context.Context, id int64, c domain.Classification, _ string, _ time.Time) error {
	f.classifications[id] = c
	return nil
}

// fakeVectors records upserts.
type fakeVectors struct {
	upsertedIDs  []int64
	lastVariants []domain.EmbeddingVariant
	lastMeta     domain.VariantMetadata
}

func (f *fakeVectors) UpsertVariants(_ context.Context, targetID int64, _ string, variants []domain.EmbeddingVariant, meta domain.VariantMetadata) error {
	f.upsertedIDs = append(f.upsertedIDs, targetID)
	f.lastVariants = variants
	f.lastMeta = meta
	return nil
}

func (f *fakeVectors) SearchIDs(context.Context, string, int, domain.TargetType) ([]int64, error) {
	return nil, nil
}

func (f *fakeVectors) DeleteEntity(context.Context, domain.TargetType, int64) error {
	return nil
}

// passthroughAI summarizes by prefixing and returns original-only variants.
type passthroughAI struct {
	summarized []string
}

func (p *passthroughAI) Summarize(_ context.Context, _, content string) string {
	p.summarized = append(p.summarized, content)
	return "Zusammenfassung: " + content[:20]
}

func (p *passthroughAI) TransformForArticle(_ context.Context, _, content string) []domain.EmbeddingVariant {
	return []domain.EmbeddingVariant{{Label: "original", Content: content}}
}

func (p *passthroughAI) TransformForDiscussion(_ context.Context, _, _, content string) []domain.EmbeddingVariant {
	return []domain.EmbeddingVariant{{Label: "original", Content: content}}
}

func newEmbedHandler(docs *fakeDocs, vectors *fakeVectors, ai *passthroughAI) *EmbedHandler {
	return NewEmbedHandler(docs, ai, ai, vectors, "nomic-embed-text", 1200, logger.NewNop())
}

func TestEmbedHandler_Article(t *testing.T) {
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{ID: 7, Title: "Titel", Content: "kurzer Inhalt"}
	vectors := &fakeVectors{}
	ai := &passthroughAI{}

	h := newEmbedHandler(docs, vectors, ai)
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetArticle, TargetID: 7,
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{7}, vectors.upsertedIDs)
	assert.Equal(t, domain.TargetArticle, vectors.lastMeta.SampleType)
	// short content is embedded raw, not summarized
	assert.Empty(t, ai.summarized)

	stamp := docs.articleStamps[7]
	assert.Equal(t, domain.HashContent("kurzer Inhalt"), stamp.ContentHash)
	assert.Equal(t, "worker", stamp.Source)
	assert.Equal(t, "nomic-embed-text", stamp.Model)
}

func TestEmbedHandler_LongContentIsSummarized(t *testing.T) {
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{ID: 7, Title: "Titel", Content: strings.Repeat("lang ", 300)}
	vectors := &fakeVectors{}
	ai := &passthroughAI{}

	h := newEmbedHandler(docs, vectors, ai)
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetArticle, TargetID: 7,
	})

	require.NoError(t, err)
	assert.Len(t, ai.summarized, 1)
	assert.True(t, strings.HasPrefix(vectors.lastVariants[0].Content, "Zusammenfassung:"))
}

func TestEmbedHandler_SkipsWhenHashUnchanged(t *testing.T) {
	hash := domain.HashContent("kurzer Inhalt")
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{
		ID: 7, Title: "Titel", Content: "kurzer Inhalt",
		Embedding: domain.EmbeddingInfo{
			Status:      domain.EmbeddingStatusSucceeded,
			ContentHash: &hash,
		},
	}
	vectors := &fakeVectors{}

	h := newEmbedHandler(docs, vectors, &passthroughAI{})
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetArticle, TargetID: 7,
	})

	require.NoError(t, err)
	assert.Empty(t, vectors.upsertedIDs)
	assert.Empty(t, docs.articleStamps)
}

func TestEmbedHandler_MissingArticleIsPermanent(t *testing.T) {
	h := newEmbedHandler(newFakeDocs(), &fakeVectors{}, &passthroughAI{})

	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetArticle, TargetID: 404,
	})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestEmbedHandler_DiscussionCarriesThreadMetadata(t *testing.T) {
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{ID: 7, Title: "Artikel"}
	docs.discussions[1] = &domain.Discussion{
		ID: 1, Title: "Wurzel", Content: "a", ArticleID: int64Ptr(7),
	}
	docs.discussions[3] = &domain.Discussion{
		ID: 3, Title: "Antwort", Content: "b",
		ParentID: int64Ptr(1), Section: strPtr("Kritik"),
	}
	vectors := &fakeVectors{}

	h := newEmbedHandler(docs, vectors, &passthroughAI{})
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetDiscussion, TargetID: 3,
	})

	require.NoError(t, err)
	require.Equal(t, []int64{3}, vectors.upsertedIDs)
	assert.Equal(t, domain.TargetDiscussion, vectors.lastMeta.SampleType)
	require.NotNil(t, vectors.lastMeta.RelatedArticleID)
	assert.Equal(t, int64(7), *vectors.lastMeta.RelatedArticleID)
	require.NotNil(t, vectors.lastMeta.RespondsToID)
	assert.Equal(t, int64(1), *vectors.lastMeta.RespondsToID)
	require.NotNil(t, vectors.lastMeta.DiscussionSection)
	assert.Equal(t, "Kritik", *vectors.lastMeta.DiscussionSection)
	assert.Contains(t, docs.discussionStamps, int64(3))
}

func TestEmbedHandler_BrokenThreadIsPermanent(t *testing.T) {
	docs := newFakeDocs()
	// parent chain dead-ends: parent 99 does not exist
	docs.discussions[3] = &domain.Discussion{ID: 3, Content: "b", ParentID: int64Ptr(99)}

	h := newEmbedHandler(docs, &fakeVectors{}, &passthroughAI{})
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeEmbedUpsert, TargetType: domain.TargetDiscussion, TargetID: 3,
	})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

// fixedClassifier returns canned labels for a subset of ids.
type fixedClassifier struct {
	labels map[int64]domain.Classification
}

func (f *fixedClassifier) Classify(_ context.Context, _, _ string, _ []domain.Discussion) map[int64]domain.Classification {
	return f.labels
}

func TestClassifyHandler_PersistsLabelsWithFallback(t *testing.T) {
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{ID: 7, Title: "Artikel", Content: "Inhalt"}
	docs.discussions[1] = &domain.Discussion{ID: 1, ArticleID: int64Ptr(7)}
	docs.discussions[2] = &domain.Discussion{ID: 2, ArticleID: int64Ptr(7)}

	classifier := &fixedClassifier{labels: map[int64]domain.Classification{
		1: {Sentiment: domain.SentimentPositive, ResponseDepth: domain.DepthInDepth},
	}}

	h := NewClassifyHandler(docs, classifier, logger.NewNop())
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeDiscussionClassify, TargetType: domain.TargetArticle, TargetID: 7,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, docs.classifications[1].Sentiment)
	// discussion 2 had no result and falls back
	assert.Equal(t, domain.FallbackClassification(), docs.classifications[2])
}

func TestClassifyHandler_EmptyForestIsNoOp(t *testing.T) {
	docs := newFakeDocs()
	docs.articles[7] = &domain.Article{ID: 7}

	h := NewClassifyHandler(docs, &fixedClassifier{}, logger.NewNop())
	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeDiscussionClassify, TargetType: domain.TargetArticle, TargetID: 7,
	})

	require.NoError(t, err)
	assert.Empty(t, docs.classifications)
}

func TestClassifyHandler_WrongTargetTypeIsPermanent(t *testing.T) {
	h := NewClassifyHandler(newFakeDocs(), &fixedClassifier{}, logger.NewNop())

	err := h.Handle(context.Background(), &domain.IndexingJob{
		JobType: domain.JobTypeDiscussionClassify, TargetType: domain.TargetDiscussion, TargetID: 3,
	})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

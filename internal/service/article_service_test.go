package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/doc-indexer/internal/ai"
	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

var testMetrics = metrics.New()

type mockArticleRepo struct {
	articles map[int64]domain.Article
	created  []string
	updated  []int64
}

func (m *mockArticleRepo) CreateArticle(_ context.Context, title, _ string) (int64, error) {
	m.created = append(m.created, title)
	return int64(len(m.created)), nil
}

func (m *mockArticleRepo) GetArticle(_ context.Context, id int64) (*domain.Article, error) {
	if a, ok := m.articles[id]; ok {
		return &a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockArticleRepo) UpdateArticleContent(_ context.Context, id int64, _ string) error {
	if _, ok := m.articles[id]; !ok {
		return domain.ErrNotFound
	}
	m.updated = append(m.updated, id)
	return nil
}

func (m *mockArticleRepo) ListArticlesByIDs(_ context.Context, ids []int64) ([]domain.Article, error) {
	var result []domain.Article
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockArticleRepo) KeywordSearchArticles(_ context.Context, term string, _ int) ([]domain.Article, error) {
	var result []domain.Article
	for _, a := range m.articles {
		if a.Title == term {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockArticleRepo) CountArticles(_ context.Context) (int64, error) {
	return int64(len(m.articles)), nil
}

// mockSearcher returns a canned ranking per query string.
type mockSearcher struct {
	rankings map[string][]int64
	queries  []string
}

func (m *mockSearcher) SearchIDs(_ context.Context, query string, _ int, _ domain.TargetType) ([]int64, error) {
	m.queries = append(m.queries, query)
	return m.rankings[query], nil
}

type mockRewriter struct {
	rewritten string
}

func (m *mockRewriter) RewriteQuery(_ context.Context, query string) string {
	if m.rewritten == "" {
		return query
	}
	return m.rewritten
}

type mockReranker struct {
	order []int64
}

func (m *mockReranker) Rerank(_ context.Context, _ string, candidates []ai.RerankCandidate) []int64 {
	if m.order != nil {
		return m.order
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

type mockEnqueuer struct {
	embeds     []int64
	embedTypes []domain.TargetType
	classifies []int64
}

func (m *mockEnqueuer) EnqueueEmbed(_ context.Context, targetType domain.TargetType, targetID int64) error {
	m.embeds = append(m.embeds, targetID)
	m.embedTypes = append(m.embedTypes, targetType)
	return nil
}

func (m *mockEnqueuer) EnqueueClassify(_ context.Context, articleID int64) error {
	m.classifies = append(m.classifies, articleID)
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}

func repoWithArticles(ids ...int64) *mockArticleRepo {
	repo := &mockArticleRepo{articles: make(map[int64]domain.Article)}
	for _, id := range ids {
		repo.articles[id] = domain.Article{ID: id, Title: "Artikel", Content: "Inhalt"}
	}
	return repo
}

func newArticleService(repo *mockArticleRepo, vectors *mockSearcher, rewriter *mockRewriter, reranker *mockReranker, jobs *mockEnqueuer, cfg config.SearchConfig) *ArticleService {
	if cfg.TopK == 0 {
		cfg.TopK = 20
	}
	return NewArticleService(repo, vectors, rewriter, reranker, jobs, cfg, testMetrics, logger.NewNop())
}

func TestArticleService_CreateEnqueuesEmbed(t *testing.T) {
	repo := repoWithArticles(1)
	jobs := &mockEnqueuer{}
	svc := newArticleService(repo, &mockSearcher{}, &mockRewriter{}, &mockReranker{}, jobs, config.SearchConfig{})

	_, err := svc.Create(context.Background(), "Neu", "Inhalt")

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, jobs.embeds)
	assert.Equal(t, []domain.TargetType{domain.TargetArticle}, jobs.embedTypes)
}

func TestArticleService_UpdateEnqueuesReembed(t *testing.T) {
	repo := repoWithArticles(7)
	jobs := &mockEnqueuer{}
	svc := newArticleService(repo, &mockSearcher{}, &mockRewriter{}, &mockReranker{}, jobs, config.SearchConfig{})

	_, err := svc.Update(context.Background(), 7, "neuer Inhalt")

	require.NoError(t, err)
	assert.Equal(t, []int64{7}, repo.updated)
	assert.Equal(t, []int64{7}, jobs.embeds)
}

func TestSemanticSearch_DualQueryFusesRankings(t *testing.T) {
	repo := repoWithArticles(10, 11, 12)
	vectors := &mockSearcher{rankings: map[string][]int64{
		"roh":          {10, 11},
		"umformuliert": {11, 12},
	}}
	svc := newArticleService(repo, vectors, &mockRewriter{rewritten: "umformuliert"}, &mockReranker{}, &mockEnqueuer{}, config.SearchConfig{})

	results, err := svc.SemanticSearch(context.Background(), "roh", SearchOptions{DualQuery: boolPtr(true)})

	require.NoError(t, err)
	// 11 ranks in both lists and fuses to the top
	require.Len(t, results, 3)
	assert.Equal(t, int64(11), results[0].ID)
	assert.Equal(t, int64(10), results[1].ID)
	assert.Equal(t, int64(12), results[2].ID)
}

func TestSemanticSearch_ConfigEnablesDualQueryByDefault(t *testing.T) {
	repo := repoWithArticles(10, 11, 12)
	vectors := &mockSearcher{rankings: map[string][]int64{
		"roh":          {10, 11},
		"umformuliert": {11, 12},
	}}
	cfg := config.SearchConfig{DualQueryEnabled: true}
	svc := newArticleService(repo, vectors, &mockRewriter{rewritten: "umformuliert"}, &mockReranker{}, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "roh", SearchOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"roh", "umformuliert"}, vectors.queries)
	require.Len(t, results, 3)
	assert.Equal(t, int64(11), results[0].ID)
}

func TestSemanticSearch_RequestOverridesConfiguredDualQuery(t *testing.T) {
	repo := repoWithArticles(10, 11)
	vectors := &mockSearcher{rankings: map[string][]int64{
		"roh":          {10, 11},
		"umformuliert": {11},
	}}
	cfg := config.SearchConfig{DualQueryEnabled: true}
	svc := newArticleService(repo, vectors, &mockRewriter{rewritten: "umformuliert"}, &mockReranker{}, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "roh", SearchOptions{DualQuery: boolPtr(false)})

	require.NoError(t, err)
	// only the rewritten query hits the index, no fusion over the raw one
	assert.Equal(t, []string{"umformuliert"}, vectors.queries)
	require.Len(t, results, 1)
	assert.Equal(t, int64(11), results[0].ID)
}

func TestSemanticSearch_ConfigEnablesRerankByDefault(t *testing.T) {
	repo := repoWithArticles(1, 2, 3)
	vectors := &mockSearcher{rankings: map[string][]int64{"frage": {1, 2, 3}}}
	cfg := config.SearchConfig{DisableQueryRewrite: true, RerankEnabled: true}
	reranker := &mockReranker{order: []int64{3, 1, 2}}
	svc := newArticleService(repo, vectors, &mockRewriter{}, reranker, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "frage", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(3), results[0].ID)
}

func TestSemanticSearch_RewriteDisabledUsesRawQuery(t *testing.T) {
	repo := repoWithArticles(5)
	vectors := &mockSearcher{rankings: map[string][]int64{"roh": {5}}}
	cfg := config.SearchConfig{DisableQueryRewrite: true}
	svc := newArticleService(repo, vectors, &mockRewriter{rewritten: "umformuliert"}, &mockReranker{}, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "roh", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"roh"}, vectors.queries)
}

func TestSemanticSearch_HydrationDropsStaleIDs(t *testing.T) {
	// id 99 is still in the vector index but its row is gone
	repo := repoWithArticles(1, 2)
	vectors := &mockSearcher{rankings: map[string][]int64{"frage": {99, 2, 1}}}
	cfg := config.SearchConfig{DisableQueryRewrite: true}
	svc := newArticleService(repo, vectors, &mockRewriter{}, &mockReranker{}, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "frage", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, int64(1), results[1].ID)
}

func TestSemanticSearch_RerankReorders(t *testing.T) {
	repo := repoWithArticles(1, 2, 3)
	vectors := &mockSearcher{rankings: map[string][]int64{"frage": {1, 2, 3}}}
	cfg := config.SearchConfig{DisableQueryRewrite: true}
	reranker := &mockReranker{order: []int64{3, 1, 2}}
	svc := newArticleService(repo, vectors, &mockRewriter{}, reranker, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "frage", SearchOptions{Rerank: boolPtr(true)})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, int64(1), results[1].ID)
}

func TestSemanticSearch_LimitTruncatesRanking(t *testing.T) {
	repo := repoWithArticles(1, 2, 3)
	vectors := &mockSearcher{rankings: map[string][]int64{"frage": {1, 2, 3}}}
	cfg := config.SearchConfig{DisableQueryRewrite: true}
	svc := newArticleService(repo, vectors, &mockRewriter{}, &mockReranker{}, &mockEnqueuer{}, cfg)

	results, err := svc.SemanticSearch(context.Background(), "frage", SearchOptions{Limit: 2})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

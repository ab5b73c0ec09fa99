package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/ai"
	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

// ArticleRepository is the article persistence surface.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, title, content string) (int64, error)
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
	UpdateArticleContent(ctx context.Context, id int64, content string) error
	ListArticlesByIDs(ctx context.Context, ids []int64) ([]domain.Article, error)
	KeywordSearchArticles(ctx context.Context, term string, limit int) ([]domain.Article, error)
	CountArticles(ctx context.Context) (int64, error)
}

// IDSearcher is the vector index search surface.
type IDSearcher interface {
	SearchIDs(ctx context.Context, query string, limit int, sampleType domain.TargetType) ([]int64, error)
}

// QueryRewriter cleans a raw query for vector search.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, query string) string
}

// Reranker reorders search candidates with an LLM judge.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []ai.RerankCandidate) []int64
}

// Enqueuer schedules indexing jobs after document mutations.
type Enqueuer interface {
	EnqueueEmbed(ctx context.Context, targetType domain.TargetType, targetID int64) error
	EnqueueClassify(ctx context.Context, articleID int64) error
}

// SearchOptions selects the retrieval strategy for one request. Nil fields
// fall back to the configured defaults.
type SearchOptions struct {
	DualQuery *bool
	Rerank    *bool
	Limit     int
}

// ArticleService handles article CRUD and the semantic retrieval pipeline.
type ArticleService struct {
	articles ArticleRepository
	vectors  IDSearcher
	rewriter QueryRewriter
	reranker Reranker
	jobs     Enqueuer

	searchCfg config.SearchConfig
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewArticleService creates an article service.
func NewArticleService(
	articles ArticleRepository,
	vectors IDSearcher,
	rewriter QueryRewriter,
	reranker Reranker,
	jobs Enqueuer,
	searchCfg config.SearchConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *ArticleService {
	return &ArticleService{
		articles:  articles,
		vectors:   vectors,
		rewriter:  rewriter,
		reranker:  reranker,
		jobs:      jobs,
		searchCfg: searchCfg,
		metrics:   m,
		logger:    log,
	}
}

// Create stores a new article and schedules its embedding.
func (s *ArticleService) Create(ctx context.Context, title, content string) (*domain.Article, error) {
	id, createErr := s.articles.CreateArticle(ctx, title, content)
	if createErr != nil {
		return nil, createErr
	}

	if enqueueErr := s.jobs.EnqueueEmbed(ctx, domain.TargetArticle, id); enqueueErr != nil {
		return nil, enqueueErr
	}

	return s.articles.GetArticle(ctx, id)
}

// Update replaces an article's content and schedules re-embedding.
func (s *ArticleService) Update(ctx context.Context, id int64, content string) (*domain.Article, error) {
	if updateErr := s.articles.UpdateArticleContent(ctx, id, content); updateErr != nil {
		return nil, updateErr
	}

	if enqueueErr := s.jobs.EnqueueEmbed(ctx, domain.TargetArticle, id); enqueueErr != nil {
		return nil, enqueueErr
	}

	return s.articles.GetArticle(ctx, id)
}

// Get loads one article.
func (s *ArticleService) Get(ctx context.Context, id int64) (*domain.Article, error) {
	return s.articles.GetArticle(ctx, id)
}

// Count returns the total number of articles.
func (s *ArticleService) Count(ctx context.Context) (int64, error) {
	return s.articles.CountArticles(ctx)
}

// KeywordSearch finds articles by substring match on title or content.
func (s *ArticleService) KeywordSearch(ctx context.Context, term string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = s.searchCfg.TopK
	}

	started := time.Now()
	results, err := s.articles.KeywordSearchArticles(ctx, term, limit)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSearch("keyword", time.Since(started))
	return results, nil
}

// SemanticSearch runs the retrieval pipeline: optional query rewrite, vector
// search (optionally fused over raw and rewritten queries), order-preserving
// hydration, and an optional rerank pass.
func (s *ArticleService) SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]domain.Article, error) {
	started := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = s.searchCfg.TopK
	}

	dualQuery := s.searchCfg.DualQueryEnabled
	if opts.DualQuery != nil {
		dualQuery = *opts.DualQuery
	}
	rerank := s.searchCfg.RerankEnabled
	if opts.Rerank != nil {
		rerank = *opts.Rerank
	}

	ids, searchErr := s.rankedIDs(ctx, query, limit, dualQuery)
	if searchErr != nil {
		return nil, searchErr
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	articles, hydrateErr := s.hydrate(ctx, ids)
	if hydrateErr != nil {
		return nil, hydrateErr
	}

	if rerank && len(articles) > 1 {
		articles = s.rerank(ctx, query, articles)
	}

	s.metrics.RecordSearch("semantic", time.Since(started))
	return articles, nil
}

// rankedIDs produces the candidate id ranking for the query.
func (s *ArticleService) rankedIDs(ctx context.Context, query string, limit int, dualQuery bool) ([]int64, error) {
	rewritten := query
	if s.searchCfg.QueryRewriteEnabled() {
		rewritten = s.rewriter.RewriteQuery(ctx, query)
	}

	if !dualQuery || rewritten == query {
		return s.vectors.SearchIDs(ctx, rewritten, limit, domain.TargetArticle)
	}

	rawIDs, rawErr := s.vectors.SearchIDs(ctx, query, limit, domain.TargetArticle)
	if rawErr != nil {
		return nil, rawErr
	}

	rewrittenIDs, rewrittenErr := s.vectors.SearchIDs(ctx, rewritten, limit, domain.TargetArticle)
	if rewrittenErr != nil {
		// degrade to the single successful ranking
		s.logger.Warn("rewritten-query search failed, using raw ranking", logger.Error(rewrittenErr))
		return rawIDs, nil
	}

	return domain.FuseRankedIDs(rawIDs, rewrittenIDs), nil
}

// hydrate loads full articles for ids, preserving rank order and silently
// dropping ids whose rows disappeared since indexing.
func (s *ArticleService) hydrate(ctx context.Context, ids []int64) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	loaded, listErr := s.articles.ListArticlesByIDs(ctx, ids)
	if listErr != nil {
		return nil, fmt.Errorf("hydrate articles: %w", listErr)
	}

	byID := make(map[int64]domain.Article, len(loaded))
	for _, a := range loaded {
		byID[a.ID] = a
	}

	ordered := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// rerank reorders the hydrated result with the LLM judge. The reranker can
// only reorder, never drop, so the result always holds the same articles.
func (s *ArticleService) rerank(ctx context.Context, query string, articles []domain.Article) []domain.Article {
	candidates := make([]ai.RerankCandidate, len(articles))
	byID := make(map[int64]domain.Article, len(articles))
	for i, a := range articles {
		candidates[i] = ai.RerankCandidate{ID: a.ID, Title: a.Title, Content: a.Content}
		byID[a.ID] = a
	}

	ordered := s.reranker.Rerank(ctx, query, candidates)

	result := make([]domain.Article, 0, len(articles))
	for _, id := range ordered {
		if a, ok := byID[id]; ok {
			result = append(result, a)
		}
	}
	return result
}

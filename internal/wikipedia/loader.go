package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/service"
)

// ArticleWriter is the article service surface the loader needs.
type ArticleWriter interface {
	Create(ctx context.Context, title, content string) (*domain.Article, error)
	Count(ctx context.Context) (int64, error)
}

// DiscussionWriter is the discussion service surface the loader needs.
type DiscussionWriter interface {
	Create(ctx context.Context, req service.CreateDiscussionRequest) (*domain.Discussion, error)
	Count(ctx context.Context) (int64, error)
}

// Fetcher fetches sample content from Wikipedia.
type Fetcher interface {
	FetchRandomArticles(ctx context.Context, count int) ([]Article, error)
	FetchDiscussionItems(ctx context.Context, articleTitle string) ([]DiscussionItem, error)
}

// ArticleBundle is one article together with its parsed discussion items.
type ArticleBundle struct {
	Article         Article          `json:"article"`
	DiscussionItems []DiscussionItem `json:"discussion_items"`
}

// cachedSampleData is the on-disk cache format.
type cachedSampleData struct {
	ArticleBundles []ArticleBundle `json:"article_bundles"`
}

// Loader fetches Wikipedia sample data, caches it on disk, and persists it
// through the document services so indexing jobs get enqueued normally.
type Loader struct {
	articles    ArticleWriter
	discussions DiscussionWriter
	fetcher     Fetcher
	cacheFile   string
	sampleSize  int
	logger      logger.Logger
}

// NewLoader creates a sample data loader.
func NewLoader(articles ArticleWriter, discussions DiscussionWriter, fetcher Fetcher, cacheFile string, sampleSize int, log logger.Logger) *Loader {
	return &Loader{
		articles:    articles,
		discussions: discussions,
		fetcher:     fetcher,
		cacheFile:   cacheFile,
		sampleSize:  sampleSize,
		logger:      log,
	}
}

// Run loads sample data unless documents already exist. Cached data is
// preferred over fresh fetching so repeated runs stay cheap and stable.
func (l *Loader) Run(ctx context.Context) error {
	articleCount, articleErr := l.articles.Count(ctx)
	if articleErr != nil {
		return fmt.Errorf("count articles: %w", articleErr)
	}
	discussionCount, discussionErr := l.discussions.Count(ctx)
	if discussionErr != nil {
		return fmt.Errorf("count discussions: %w", discussionErr)
	}
	if articleCount+discussionCount > 0 {
		l.logger.Info("Skipping sample data loading because documents already exist",
			logger.Int64("articles", articleCount),
			logger.Int64("discussions", discussionCount))
		return nil
	}

	l.logger.Info("Starting sample data loading")

	bundles := l.loadCached()
	if len(bundles) == 0 {
		l.logger.Info("No cached sample data found, fetching from Wikipedia")

		fetched, fetchErr := l.fetchBundles(ctx)
		if fetchErr != nil {
			return fetchErr
		}
		bundles = fetched
		l.persistCache(bundles)
	}

	if persistErr := l.persistDocuments(ctx, bundles); persistErr != nil {
		return persistErr
	}

	l.logger.Info("Sample data loading completed", logger.Int("bundles", len(bundles)))
	return nil
}

func (l *Loader) fetchBundles(ctx context.Context) ([]ArticleBundle, error) {
	articles, fetchErr := l.fetcher.FetchRandomArticles(ctx, l.sampleSize)
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch articles: %w", fetchErr)
	}

	bundles := make([]ArticleBundle, 0, len(articles))
	for i, article := range articles {
		l.logger.Info("Fetching discussion items",
			logger.Int("article", i+1),
			logger.Int("total", len(articles)),
			logger.String("title", article.Title))

		items, itemsErr := l.fetcher.FetchDiscussionItems(ctx, article.Title)
		if itemsErr != nil {
			l.logger.Warn("Failed to fetch discussion items, continuing without",
				logger.String("title", article.Title),
				logger.Error(itemsErr))
			items = nil
		}
		bundles = append(bundles, ArticleBundle{Article: article, DiscussionItems: items})
	}
	return bundles, nil
}

func (l *Loader) persistDocuments(ctx context.Context, bundles []ArticleBundle) error {
	for i, bundle := range bundles {
		l.logger.Info("Persisting article bundle",
			logger.Int("bundle", i+1),
			logger.Int("total", len(bundles)),
			logger.String("title", bundle.Article.Title))

		article, createErr := l.articles.Create(ctx, bundle.Article.Title, bundle.Article.Extract)
		if createErr != nil {
			return fmt.Errorf("create article %q: %w", bundle.Article.Title, createErr)
		}

		itemIDToDocumentID := make(map[string]int64, len(bundle.DiscussionItems))
		for _, item := range bundle.DiscussionItems {
			req := service.CreateDiscussionRequest{
				Title:   fmt.Sprintf("%s - Diskussion %s", bundle.Article.Title, item.ItemID),
				Content: item.Text,
			}

			section := item.Section
			req.Section = &section

			if item.ParentItemID != "" {
				if parentDocID, ok := itemIDToDocumentID[item.ParentItemID]; ok {
					parent := parentDocID
					req.ParentID = &parent
				}
			}
			if req.ParentID == nil {
				articleID := article.ID
				req.ArticleID = &articleID
			}

			discussion, discussionErr := l.discussions.Create(ctx, req)
			if discussionErr != nil {
				return fmt.Errorf("create discussion for %q: %w", bundle.Article.Title, discussionErr)
			}
			itemIDToDocumentID[item.ItemID] = discussion.ID
		}
	}
	return nil
}

func (l *Loader) loadCached() []ArticleBundle {
	raw, readErr := os.ReadFile(l.cacheFile)
	if readErr != nil {
		return nil
	}

	var data cachedSampleData
	if decodeErr := json.Unmarshal(raw, &data); decodeErr != nil {
		l.logger.Warn("Failed to decode cached sample data, fetching fresh",
			logger.String("file", l.cacheFile),
			logger.Error(decodeErr))
		return nil
	}

	if len(data.ArticleBundles) > 0 {
		l.logger.Info("Loaded cached sample data",
			logger.Int("bundles", len(data.ArticleBundles)),
			logger.String("file", l.cacheFile))
	}
	return data.ArticleBundles
}

func (l *Loader) persistCache(bundles []ArticleBundle) {
	if len(bundles) == 0 {
		return
	}

	raw, marshalErr := json.MarshalIndent(cachedSampleData{ArticleBundles: bundles}, "", "  ")
	if marshalErr != nil {
		l.logger.Warn("Failed to encode sample data cache", logger.Error(marshalErr))
		return
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(l.cacheFile), 0o755); mkdirErr != nil {
		l.logger.Warn("Failed to create cache directory", logger.Error(mkdirErr))
		return
	}

	if writeErr := os.WriteFile(l.cacheFile, raw, 0o644); writeErr != nil {
		l.logger.Warn("Failed to write sample data cache",
			logger.String("file", l.cacheFile),
			logger.Error(writeErr))
		return
	}

	l.logger.Info("Persisted sample data cache",
		logger.Int("bundles", len(bundles)),
		logger.String("file", l.cacheFile))
}

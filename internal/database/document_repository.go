package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jonesrussell/doc-indexer/internal/domain"
)

// articleSelectList is the column list for SELECT on articles.
const articleSelectList = `id, title, content, content_hash, updated_at,
		embedded_at, embedding_content_hash, embedding_status, embedding_source, embedding_model`

// discussionSelectList is the column list for SELECT on discussions.
const discussionSelectList = `id, title, content, article_id, parent_id, discussion_section,
		sentiment, response_depth, classified_at, classification_status, classification_source,
		updated_at, embedded_at, embedding_content_hash, embedding_status, embedding_source, embedding_model`

// qualifiedDiscussionSelectList prefixes every discussion column for joins.
const qualifiedDiscussionSelectList = `d.id, d.title, d.content, d.article_id, d.parent_id, d.discussion_section,
		d.sentiment, d.response_depth, d.classified_at, d.classification_status, d.classification_source,
		d.updated_at, d.embedded_at, d.embedding_content_hash, d.embedding_status, d.embedding_source, d.embedding_model`

// DocumentRepository manages articles and their discussion forests.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateArticle inserts a new article and returns its id.
func (r *DocumentRepository) CreateArticle(ctx context.Context, title, content string) (int64, error) {
	query := `
		INSERT INTO articles (title, content, content_hash, embedding_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		title, content, domain.HashContent(content), string(domain.EmbeddingStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create article: %w", err)
	}
	return id, nil
}

// GetArticle loads one article by id.
func (r *DocumentRepository) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	query := `SELECT ` + articleSelectList + ` FROM articles WHERE id = $1`

	article, scanErr := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if scanErr == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if scanErr != nil {
		return nil, fmt.Errorf("get article: %w", scanErr)
	}
	return article, nil
}

// UpdateArticleContent replaces an article's content and resets its embedding
// bookkeeping so the new content gets re-indexed.
func (r *DocumentRepository) UpdateArticleContent(ctx context.Context, id int64, content string) error {
	query := `
		UPDATE articles
		SET content = $2, content_hash = $3, embedded_at = NULL,
		    embedding_status = $4, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectOneRow(ctx, "update article content", query,
		id, content, domain.HashContent(content), string(domain.EmbeddingStatusPending))
}

// StampArticleEmbedding records a completed embedding upsert on an article.
func (r *DocumentRepository) StampArticleEmbedding(ctx context.Context, id int64, stamp domain.EmbeddingStamp) error {
	query := `
		UPDATE articles
		SET embedding_content_hash = $2, embedding_status = $3, embedding_source = $4,
		    embedding_model = $5, embedded_at = $6, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectOneRow(ctx, "stamp article embedding", query,
		id, stamp.ContentHash, string(domain.EmbeddingStatusSucceeded),
		stamp.Source, stamp.Model, stamp.EmbeddedAt)
}

// ListArticlesByIDs loads the given articles in no particular order.
func (r *DocumentRepository) ListArticlesByIDs(ctx context.Context, ids []int64) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + articleSelectList + ` FROM articles WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list articles by ids: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan article: %w", scanErr)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

// KeywordSearchArticles finds articles whose title or content matches term.
func (r *DocumentRepository) KeywordSearchArticles(ctx context.Context, term string, limit int) ([]domain.Article, error) {
	query := `
		SELECT ` + articleSelectList + `
		FROM articles
		WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan article: %w", scanErr)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

// CountArticles returns the total number of articles.
func (r *DocumentRepository) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// CreateDiscussion inserts a new discussion reply and returns its id.
// Exactly one of ArticleID or ParentID must link the reply upward; the
// caller validates that before insertion.
func (r *DocumentRepository) CreateDiscussion(ctx context.Context, d *domain.Discussion) (int64, error) {
	query := `
		INSERT INTO discussions
			(title, content, article_id, parent_id, discussion_section,
			 sentiment, response_depth, embedding_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		d.Title, d.Content, d.ArticleID, d.ParentID, d.Section,
		string(domain.SentimentNeutral), string(domain.DepthSubstantive),
		string(domain.EmbeddingStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create discussion: %w", err)
	}
	return id, nil
}

// GetDiscussion loads one discussion by id.
func (r *DocumentRepository) GetDiscussion(ctx context.Context, id int64) (*domain.Discussion, error) {
	query := `SELECT ` + discussionSelectList + ` FROM discussions WHERE id = $1`

	discussion, scanErr := scanDiscussion(r.db.QueryRowContext(ctx, query, id))
	if scanErr == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if scanErr != nil {
		return nil, fmt.Errorf("get discussion: %w", scanErr)
	}
	return discussion, nil
}

// UpdateDiscussionContent replaces a discussion's content and resets its
// embedding bookkeeping.
func (r *DocumentRepository) UpdateDiscussionContent(ctx context.Context, id int64, content string) error {
	query := `
		UPDATE discussions
		SET content = $2, embedded_at = NULL, embedding_status = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectOneRow(ctx, "update discussion content", query,
		id, content, string(domain.EmbeddingStatusPending))
}

// StampDiscussionEmbedding records a completed embedding upsert on a discussion.
func (r *DocumentRepository) StampDiscussionEmbedding(ctx context.Context, id int64, stamp domain.EmbeddingStamp) error {
	query := `
		UPDATE discussions
		SET embedding_content_hash = $2, embedding_status = $3, embedding_source = $4,
		    embedding_model = $5, embedded_at = $6, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectOneRow(ctx, "stamp discussion embedding", query,
		id, stamp.ContentHash, string(domain.EmbeddingStatusSucceeded),
		stamp.Source, stamp.Model, stamp.EmbeddedAt)
}

// ListDiscussionsByArticle returns the article's entire discussion forest in
// one round trip: root replies plus everything transitively below them.
func (r *DocumentRepository) ListDiscussionsByArticle(ctx context.Context, articleID int64) ([]domain.Discussion, error) {
	query := `
		WITH RECURSIVE thread AS (
			SELECT ` + discussionSelectList + `
			FROM discussions
			WHERE article_id = $1
			UNION ALL
			SELECT ` + qualifiedDiscussionSelectList + `
			FROM discussions d
			JOIN thread t ON d.parent_id = t.id
		)
		SELECT * FROM thread`

	rows, err := r.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("list discussions by article: %w", err)
	}
	defer rows.Close()

	var discussions []domain.Discussion
	for rows.Next() {
		discussion, scanErr := scanDiscussion(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan discussion: %w", scanErr)
		}
		discussions = append(discussions, *discussion)
	}
	return discussions, rows.Err()
}

// UpdateDiscussionClassification persists the classification labels for one
// discussion reply.
func (r *DocumentRepository) UpdateDiscussionClassification(
	ctx context.Context,
	id int64,
	classification domain.Classification,
	source string,
	classifiedAt time.Time,
) error {
	query := `
		UPDATE discussions
		SET sentiment = $2, response_depth = $3, classification_status = $4,
		    classification_source = $5, classified_at = $6, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectOneRow(ctx, "update discussion classification", query,
		id, string(classification.Sentiment), string(classification.ResponseDepth),
		"succeeded", source, classifiedAt)
}

// CountDiscussions returns the total number of discussions.
func (r *DocumentRepository) CountDiscussions(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discussions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count discussions: %w", err)
	}
	return count, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *DocumentRepository) execExpectOneRow(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("%s: affected rows: %w", op, rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var a domain.Article
	var status sql.NullString

	err := row.Scan(
		&a.ID, &a.Title, &a.Content, &a.ContentHash, &a.UpdatedAt,
		&a.Embedding.EmbeddedAt, &a.Embedding.ContentHash, &status,
		&a.Embedding.Source, &a.Embedding.Model,
	)
	if err != nil {
		return nil, err
	}

	if status.Valid {
		a.Embedding.Status = domain.EmbeddingStatus(status.String)
	}
	return &a, nil
}

func scanDiscussion(row rowScanner) (*domain.Discussion, error) {
	var d domain.Discussion
	var sentiment, responseDepth string
	var embeddingStatus sql.NullString

	err := row.Scan(
		&d.ID, &d.Title, &d.Content, &d.ArticleID, &d.ParentID, &d.Section,
		&sentiment, &responseDepth, &d.ClassifiedAt, &d.ClassificationStatus,
		&d.ClassificationSource, &d.UpdatedAt, &d.Embedding.EmbeddedAt,
		&d.Embedding.ContentHash, &embeddingStatus, &d.Embedding.Source, &d.Embedding.Model,
	)
	if err != nil {
		return nil, err
	}

	d.Sentiment = domain.NormalizeSentiment(sentiment)
	d.ResponseDepth = domain.NormalizeDepth(responseDepth)
	if embeddingStatus.Valid {
		d.Embedding.Status = domain.EmbeddingStatus(embeddingStatus.String)
	}
	return &d, nil
}

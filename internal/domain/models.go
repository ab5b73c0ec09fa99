// Package domain contains the core domain models for the doc-indexer service:
// articles, threaded discussions, indexing jobs, and the semantic search types
// shared between the worker and the retrieval pipeline.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("not found")

// JobType identifies the kind of deferred work an indexing job carries.
type JobType string

const (
	// JobTypeEmbedUpsert re-embeds a document and upserts its variants into
	// the vector index.
	JobTypeEmbedUpsert JobType = "embed_upsert"
	// JobTypeDiscussionClassify re-classifies the full discussion forest of
	// an article.
	JobTypeDiscussionClassify JobType = "discussion_classify"
)

// TargetType identifies which document table a job points at.
type TargetType string

const (
	// TargetArticle marks a root article document.
	TargetArticle TargetType = "article"
	// TargetDiscussion marks a discussion reply document.
	TargetDiscussion TargetType = "discussion"
)

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	// JobStatusPending means the job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning means a worker holds the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusSucceeded is the terminal success state.
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusDeadLetter is the terminal failure state after the retry
	// budget is exhausted.
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// DefaultMaxAttempts is the retry budget applied when enqueueing a job
// without an explicit override.
const DefaultMaxAttempts = 5

// MaxErrorLength bounds the persisted last_error message.
const MaxErrorLength = 1000

// IndexingJob is one unit of deferred indexing or classification work.
type IndexingJob struct {
	ID          int64
	JobType     JobType
	TargetType  TargetType
	TargetID    int64
	Status      JobStatus
	Attempt     int
	MaxAttempts int
	AvailableAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStats aggregates job counts per status for operational visibility.
type JobStats struct {
	Pending              int64   `json:"pending"`
	Running              int64   `json:"running"`
	Succeeded            int64   `json:"succeeded"`
	DeadLetter           int64   `json:"dead_letter"`
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`
}

// EmbeddingStatus marks the vector-index freshness of a document.
type EmbeddingStatus string

const (
	// EmbeddingStatusPending means the document has not been embedded since
	// its last content change.
	EmbeddingStatusPending EmbeddingStatus = "pending"
	// EmbeddingStatusSucceeded means the vector index holds the current
	// content.
	EmbeddingStatusSucceeded EmbeddingStatus = "succeeded"
)

// EmbeddingInfo carries the embedding bookkeeping columns shared by articles
// and discussions.
type EmbeddingInfo struct {
	EmbeddedAt  *time.Time
	ContentHash *string
	Status      EmbeddingStatus
	Source      *string
	Model       *string
}

// EmbeddingStamp records a completed embedding upsert on a document.
type EmbeddingStamp struct {
	ContentHash string
	Model       string
	Source      string
	EmbeddedAt  time.Time
}

// Article is a root document owning zero or more discussions.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHash string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
	Embedding   EmbeddingInfo
}

// Discussion is a reply in an article's discussion forest. Exactly one of
// ArticleID (root reply) or ParentID (nested reply) links it upward; a nested
// reply resolves to its owning article by walking the parent chain.
type Discussion struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Content              string     `json:"content"`
	ArticleID            *int64     `json:"related_article_id,omitempty"`
	ParentID             *int64     `json:"responds_to_id,omitempty"`
	Section              *string    `json:"discussion_section,omitempty"`
	Sentiment            Sentiment  `json:"sentiment"`
	ResponseDepth        Depth      `json:"response_depth"`
	ClassifiedAt         *time.Time `json:"classified_at,omitempty"`
	ClassificationStatus *string    `json:"-"`
	ClassificationSource *string    `json:"-"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Embedding            EmbeddingInfo
}

// IsRoot reports whether the discussion replies directly to its article.
func (d *Discussion) IsRoot() bool {
	return d.ParentID == nil
}

// Sentiment is the classified tone of a discussion reply.
type Sentiment string

// Valid sentiment labels. Unknown values normalize to neutral.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NormalizeSentiment maps any string onto a valid sentiment label.
func NormalizeSentiment(value string) Sentiment {
	switch Sentiment(value) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return Sentiment(value)
	default:
		return SentimentNeutral
	}
}

// Depth is the classified response depth of a discussion reply.
type Depth string

// Valid response depth labels. Unknown values normalize to substantive.
const (
	DepthTrivial     Depth = "trivial"
	DepthSubstantive Depth = "substantive"
	DepthInDepth     Depth = "in_depth"
	DepthOffTopic    Depth = "off_topic"
)

// NormalizeDepth maps any string onto a valid response depth label.
func NormalizeDepth(value string) Depth {
	switch Depth(value) {
	case DepthTrivial, DepthSubstantive, DepthInDepth, DepthOffTopic:
		return Depth(value)
	default:
		return DepthSubstantive
	}
}

// Classification is the (sentiment, response depth) pair assigned to a
// discussion reply.
type Classification struct {
	Sentiment     Sentiment
	ResponseDepth Depth
}

// FallbackClassification is applied when a reply could not be classified.
func FallbackClassification() Classification {
	return Classification{Sentiment: SentimentNeutral, ResponseDepth: DepthSubstantive}
}

// EmbeddingVariant is one alternate textual rendering of a document used to
// diversify embedding coverage. Variants are ephemeral; each becomes one
// vector-index record.
type EmbeddingVariant struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// VariantMetadata is the restricted metadata attached to every vector record
// of a document. Nothing outside these fields may leak into the vector index.
type VariantMetadata struct {
	SampleType        TargetType
	RelatedArticleID  *int64
	RespondsToID      *int64
	DiscussionSection *string
}

// HashContent returns the SHA-256 hex digest of content, used to detect
// whether the indexed rendering of a document is stale.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// TruncateError bounds an error message to MaxErrorLength for persistence.
func TruncateError(msg string) string {
	if msg == "" {
		msg = "unknown error"
	}
	if len(msg) <= MaxErrorLength {
		return msg
	}
	return msg[:MaxErrorLength]
}

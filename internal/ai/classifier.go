package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

const batchClassifySystemPrompt = `Du klassifizierst Diskussionsbeiträge zu einem Artikel. Bewerte jeden Beitrag relativ zum Artikel. Antworte nur mit einem JSON-Array von Objekten mit den Feldern "id" (Zahl), "sentiment" (positive|negative|neutral) und "response_depth" (trivial|substantive|in_depth|off_topic).`

const replyClassifySystemPrompt = `Du klassifizierst eine Antwort relativ zu dem Beitrag, auf den sie sich direkt bezieht. Antworte nur mit einem JSON-Objekt mit den Feldern "sentiment" (positive|negative|neutral) und "response_depth" (trivial|substantive|in_depth|off_topic).`

// Classifier assigns sentiment and response-depth labels to discussions.
// Root replies are judged against the article in one batched call; nested
// replies are judged one at a time against their direct parent only, because
// reply relevance is local to the immediate exchange.
type Classifier struct {
	chat llm.ChatClient
	log  logger.Logger
}

// NewClassifier creates a classifier over the given chat client.
func NewClassifier(chat llm.ChatClient, log logger.Logger) *Classifier {
	return &Classifier{chat: chat, log: log}
}

type classifiedReply struct {
	ID            int64  `json:"id"`
	Sentiment     string `json:"sentiment"`
	ResponseDepth string `json:"response_depth"`
}

// Classify labels every discussion in the forest. The result always contains
// an entry for every input discussion; unclassifiable ones carry the
// neutral/substantive fallback.
func (c *Classifier) Classify(
	ctx context.Context,
	articleTitle, articleContent string,
	discussions []domain.Discussion,
) map[int64]domain.Classification {
	result := make(map[int64]domain.Classification, len(discussions))
	byID := make(map[int64]*domain.Discussion, len(discussions))

	var roots []domain.Discussion
	for i := range discussions {
		byID[discussions[i].ID] = &discussions[i]
		if discussions[i].IsRoot() {
			roots = append(roots, discussions[i])
		}
	}

	c.classifyRoots(ctx, articleTitle, articleContent, roots, result)

	for _, d := range discussions {
		if d.IsRoot() {
			continue
		}
		result[d.ID] = c.classifyNested(ctx, d, byID)
	}

	// anything still missing gets the fallback
	for _, d := range discussions {
		if _, ok := result[d.ID]; !ok {
			result[d.ID] = domain.FallbackClassification()
		}
	}
	return result
}

// classifyRoots labels all root replies against the article in one call.
func (c *Classifier) classifyRoots(
	ctx context.Context,
	articleTitle, articleContent string,
	roots []domain.Discussion,
	result map[int64]domain.Classification,
) {
	if len(roots) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Artikel: %s\n%s\n\nBeiträge:\n", articleTitle, articleContent)
	for _, root := range roots {
		fmt.Fprintf(&sb, "[id=%d] %s: %s\n", root.ID, root.Title, root.Content)
	}

	reply, err := c.chat.Complete(ctx, batchClassifySystemPrompt, sb.String())
	if err != nil {
		c.log.Warn("batch classification failed, applying fallback",
			logger.String("article_title", articleTitle),
			logger.Int("roots", len(roots)),
			logger.Error(err))
		return
	}

	var classified []classifiedReply
	if decodeErr := decodeJSONReply(reply, &classified); decodeErr != nil {
		c.log.Warn("batch classification reply is not valid JSON, applying fallback",
			logger.Error(decodeErr))
		return
	}

	known := make(map[int64]struct{}, len(roots))
	for _, root := range roots {
		known[root.ID] = struct{}{}
	}

	for _, entry := range classified {
		if _, ok := known[entry.ID]; !ok {
			continue
		}
		result[entry.ID] = domain.Classification{
			Sentiment:     domain.NormalizeSentiment(entry.Sentiment),
			ResponseDepth: domain.NormalizeDepth(entry.ResponseDepth),
		}
	}
}

// classifyNested labels one nested reply against its direct parent.
func (c *Classifier) classifyNested(
	ctx context.Context,
	d domain.Discussion,
	byID map[int64]*domain.Discussion,
) domain.Classification {
	parent, ok := byID[*d.ParentID]
	if !ok {
		return domain.FallbackClassification()
	}

	prompt := fmt.Sprintf("Bezugsbeitrag: %s\n%s\n\nAntwort: %s\n%s",
		parent.Title, parent.Content, d.Title, d.Content)

	reply, err := c.chat.Complete(ctx, replyClassifySystemPrompt, prompt)
	if err != nil {
		c.log.Warn("reply classification failed, applying fallback",
			logger.Int64("discussion_id", d.ID),
			logger.Error(err))
		return domain.FallbackClassification()
	}

	var classified classifiedReply
	if decodeErr := decodeJSONReply(reply, &classified); decodeErr != nil {
		c.log.Warn("reply classification is not valid JSON, applying fallback",
			logger.Int64("discussion_id", d.ID),
			logger.Error(decodeErr))
		return domain.FallbackClassification()
	}

	return domain.Classification{
		Sentiment:     domain.NormalizeSentiment(classified.Sentiment),
		ResponseDepth: domain.NormalizeDepth(classified.ResponseDepth),
	}
}

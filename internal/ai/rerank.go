package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

const rerankSystemPrompt = `Du sortierst Suchtreffer nach Relevanz zur Anfrage. Antworte nur mit einem JSON-Array der Treffer-IDs (Zahlen), relevanteste zuerst. Erfinde keine IDs.`

const maxRerankContentChars = 1000

// RerankCandidate is the compact form of a search hit sent to the reranker.
type RerankCandidate struct {
	ID      int64
	Title   string
	Content string
}

// Reranker reorders an initial candidate set with an LLM relevance judge.
// The rerank can only reorder known candidates, never drop or invent them;
// any failure falls back to the baseline order unchanged.
type Reranker struct {
	chat llm.ChatClient
	log  logger.Logger
}

// NewReranker creates a reranker over the given chat client.
func NewReranker(chat llm.ChatClient, log logger.Logger) *Reranker {
	return &Reranker{chat: chat, log: log}
}

// Rerank returns the candidate ids reordered by the model. The result is the
// model's order restricted to known ids, followed by every unmentioned id in
// its original position order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) []int64 {
	baseline := make([]int64, len(candidates))
	for i, c := range candidates {
		baseline[i] = c.ID
	}
	if len(candidates) < 2 {
		return baseline
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Anfrage: %s\n\nTreffer:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "[id=%d] %s: %s\n", c.ID, c.Title, truncateContent(c.Content))
	}

	reply, err := r.chat.Complete(ctx, rerankSystemPrompt, sb.String())
	if err != nil {
		r.log.Warn("rerank failed, keeping baseline order", logger.Error(err))
		return baseline
	}

	var ordered []int64
	if decodeErr := decodeJSONReply(reply, &ordered); decodeErr != nil {
		r.log.Warn("rerank reply is not valid JSON, keeping baseline order", logger.Error(decodeErr))
		return baseline
	}

	return mergeRerankOrder(baseline, ordered)
}

// mergeRerankOrder builds the final order: model order restricted to known
// ids first, then remaining baseline ids in baseline order.
func mergeRerankOrder(baseline, modelOrder []int64) []int64 {
	known := make(map[int64]struct{}, len(baseline))
	for _, id := range baseline {
		known[id] = struct{}{}
	}

	placed := make(map[int64]struct{}, len(baseline))
	result := make([]int64, 0, len(baseline))

	for _, id := range modelOrder {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		result = append(result, id)
	}

	for _, id := range baseline {
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func truncateContent(content string) string {
	if len(content) > maxRerankContentChars {
		return content[:maxRerankContentChars]
	}
	return content
}

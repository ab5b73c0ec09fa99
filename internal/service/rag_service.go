package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

const answerSystemPrompt = `Beantworte die Frage ausschließlich anhand der mitgelieferten Artikel. Wenn die Artikel keine Antwort hergeben, sage das offen. Nenne die Titel der Artikel, auf die du dich stützt.`

const maxContextArticles = 5

// ArticleSearcher is the retrieval surface the RAG service builds on.
type ArticleSearcher interface {
	SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]domain.Article, error)
}

// Answer is a grounded reply with the articles it drew from.
type Answer struct {
	Text    string           `json:"answer"`
	Sources []domain.Article `json:"sources"`
}

// RagService answers questions by retrieving relevant articles and asking
// the chat model to summarize them.
type RagService struct {
	search  ArticleSearcher
	chat    llm.ChatClient
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewRagService creates a RAG service.
func NewRagService(search ArticleSearcher, chat llm.ChatClient, m *metrics.Metrics, log logger.Logger) *RagService {
	return &RagService{search: search, chat: chat, metrics: m, logger: log}
}

// Answer retrieves context for the question and generates a grounded reply.
// Retrieval failure is fatal; generation failure degrades to sources-only.
func (s *RagService) Answer(ctx context.Context, question string) (*Answer, error) {
	started := time.Now()

	articles, searchErr := s.search.SemanticSearch(ctx, question, SearchOptions{Limit: maxContextArticles})
	if searchErr != nil {
		return nil, fmt.Errorf("retrieve context: %w", searchErr)
	}
	if len(articles) == 0 {
		return &Answer{Text: "Dazu wurden keine passenden Artikel gefunden."}, nil
	}

	reply, chatErr := s.chat.Complete(ctx, answerSystemPrompt, buildContextPrompt(question, articles))
	if chatErr != nil {
		s.logger.Warn("answer generation failed, returning sources only", logger.Error(chatErr))
		return &Answer{
			Text:    "Die Antwort konnte nicht generiert werden; die relevantesten Artikel sind beigefügt.",
			Sources: articles,
		}, nil
	}

	s.metrics.RecordSearch("ask", time.Since(started))
	return &Answer{Text: strings.TrimSpace(reply), Sources: articles}, nil
}

func buildContextPrompt(question string, articles []domain.Article) string {
	var sb strings.Builder
	sb.WriteString("Artikel:\n")
	for _, a := range articles {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", a.Title, a.Content)
	}
	fmt.Fprintf(&sb, "Frage: %s", question)
	return sb.String()
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

const summarizeSystemPrompt = `Du bist ein präziser Zusammenfasser. Fasse den folgenden Text in höchstens 5 Sätzen zusammen. Erhalte die zentralen Fachbegriffe und Namen. Antworte nur mit der Zusammenfassung, ohne Einleitung.`

const rewriteSystemPrompt = `Formuliere die folgende Suchanfrage in eine klare, semantisch dichte Form um, die sich gut für eine Vektorsuche eignet. Entferne Füllwörter, behalte alle inhaltstragenden Begriffe. Antworte nur mit der umformulierten Anfrage.`

// Summarizer condenses documents for embedding and rewrites search queries.
type Summarizer struct {
	chat llm.ChatClient
	log  logger.Logger
}

// NewSummarizer creates a summarizer over the given chat client.
func NewSummarizer(chat llm.ChatClient, log logger.Logger) *Summarizer {
	return &Summarizer{chat: chat, log: log}
}

// Summarize returns a short summary of content, or the content unchanged when
// the model is unavailable. Long documents embed better summarized.
func (s *Summarizer) Summarize(ctx context.Context, title, content string) string {
	prompt := fmt.Sprintf("Titel: %s\n\n%s", title, content)

	reply, err := s.chat.Complete(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		s.log.Warn("summarize failed, using full content",
			logger.String("title", title),
			logger.Error(err))
		return content
	}

	summary := strings.TrimSpace(stripCodeFences(reply))
	if summary == "" {
		return content
	}
	return summary
}

// RewriteQuery returns a cleaner semantic form of the raw query, or the raw
// query unchanged when rewriting fails.
func (s *Summarizer) RewriteQuery(ctx context.Context, query string) string {
	reply, err := s.chat.Complete(ctx, rewriteSystemPrompt, query)
	if err != nil {
		s.log.Warn("query rewrite failed, using raw query", logger.Error(err))
		return query
	}

	rewritten := strings.TrimSpace(stripCodeFences(reply))
	if rewritten == "" {
		return query
	}
	return rewritten
}

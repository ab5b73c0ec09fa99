package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// OriginalVariantLabel marks the verbatim rendering that every document gets.
const OriginalVariantLabel = "original"

const maxGeneratedVariants = 3

const articleVariantsSystemPrompt = `Du erzeugst alternative Textfassungen eines Artikels für eine Vektorsuche. Antworte nur mit einem JSON-Array von Objekten mit den Feldern "label" und "content". Erzeuge höchstens drei Fassungen: "summary" (kurze Zusammenfassung), "keywords" (kommagetrennte Schlüsselbegriffe), "stance" (Kernaussage in einem Satz).`

const discussionVariantsSystemPrompt = `Du erzeugst alternative Textfassungen eines Diskussionsbeitrags für eine Vektorsuche. Antworte nur mit einem JSON-Array von Objekten mit den Feldern "label" und "content". Erzeuge höchstens drei Fassungen: "summary" (kurze Zusammenfassung), "keywords" (kommagetrennte Schlüsselbegriffe), "stance" (Position des Beitrags in einem Satz).`

// VariantGenerator turns a document into one or more embedding renderings.
// The verbatim original always comes first; LLM enrichment is best-effort.
type VariantGenerator struct {
	chat llm.ChatClient
	log  logger.Logger
}

// NewVariantGenerator creates a variant generator over the given chat client.
func NewVariantGenerator(chat llm.ChatClient, log logger.Logger) *VariantGenerator {
	return &VariantGenerator{chat: chat, log: log}
}

// TransformForArticle renders an article into embedding variants.
func (g *VariantGenerator) TransformForArticle(ctx context.Context, title, content string) []domain.EmbeddingVariant {
	prompt := fmt.Sprintf("Artikel: %s\n\n%s", title, content)
	return g.generate(ctx, articleVariantsSystemPrompt, prompt, content)
}

// TransformForDiscussion renders a discussion reply into embedding variants.
// The owning article's title gives the model topical context.
func (g *VariantGenerator) TransformForDiscussion(ctx context.Context, articleTitle, discussionTitle, content string) []domain.EmbeddingVariant {
	prompt := fmt.Sprintf("Artikel: %s\nBeitrag: %s\n\n%s", articleTitle, discussionTitle, content)
	return g.generate(ctx, discussionVariantsSystemPrompt, prompt, content)
}

func (g *VariantGenerator) generate(ctx context.Context, systemPrompt, userPrompt, original string) []domain.EmbeddingVariant {
	variants := []domain.EmbeddingVariant{{Label: OriginalVariantLabel, Content: original}}

	reply, err := g.chat.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		g.log.Warn("variant generation failed, embedding original only", logger.Error(err))
		return variants
	}

	var generated []domain.EmbeddingVariant
	if decodeErr := decodeJSONReply(reply, &generated); decodeErr != nil {
		g.log.Warn("variant reply is not valid JSON, embedding original only", logger.Error(decodeErr))
		return variants
	}

	if len(generated) > maxGeneratedVariants {
		generated = generated[:maxGeneratedVariants]
	}

	return dedupeVariants(append(variants, generated...))
}

// dedupeVariants trims contents, drops blanks, and removes duplicates by
// normalized content. First-seen label and order win.
func dedupeVariants(variants []domain.EmbeddingVariant) []domain.EmbeddingVariant {
	seen := make(map[string]struct{}, len(variants))
	result := make([]domain.EmbeddingVariant, 0, len(variants))

	for _, v := range variants {
		content := strings.TrimSpace(v.Content)
		if content == "" {
			continue
		}

		key := strings.ToLower(content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		result = append(result, domain.EmbeddingVariant{
			Label:   strings.TrimSpace(v.Label),
			Content: content,
		})
	}
	return result
}

package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// fakeChat returns canned replies keyed on a substring of the user prompt,
// or a single fixed reply, or an error.
type fakeChat struct {
	reply   string
	replies map[string]string
	err     error
	calls   []string
}

func (f *fakeChat) Complete(_ context.Context, _, userPrompt string) (string, error) {
	f.calls = append(f.calls, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	for needle, reply := range f.replies {
		if strings.Contains(userPrompt, needle) {
			return reply, nil
		}
	}
	return f.reply, nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestStripCodeFences(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"plain":            {`{"a":1}`, `{"a":1}`},
		"fenced":           {"```\n{\"a\":1}\n```", `{"a":1}`},
		"fenced with lang": {"```json\n{\"a\":1}\n```", `{"a":1}`},
		"padded":           {"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripCodeFences(tc.in))
		})
	}
}

func TestSummarizer_Summarize_FallsBackToContent(t *testing.T) {
	chat := &fakeChat{err: errors.New("model down")}
	s := NewSummarizer(chat, logger.NewNop())

	got := s.Summarize(context.Background(), "Titel", "voller Inhalt")

	assert.Equal(t, "voller Inhalt", got)
}

func TestSummarizer_Summarize_UsesReply(t *testing.T) {
	chat := &fakeChat{reply: "kurze Fassung"}
	s := NewSummarizer(chat, logger.NewNop())

	got := s.Summarize(context.Background(), "Titel", "voller Inhalt")

	assert.Equal(t, "kurze Fassung", got)
}

func TestSummarizer_RewriteQuery_FallsBackOnBlankReply(t *testing.T) {
	chat := &fakeChat{reply: "   "}
	s := NewSummarizer(chat, logger.NewNop())

	got := s.RewriteQuery(context.Background(), "wie funktionieren schwarze löcher")

	assert.Equal(t, "wie funktionieren schwarze löcher", got)
}

func TestVariantGenerator_AlwaysIncludesOriginalFirst(t *testing.T) {
	chat := &fakeChat{reply: `[{"label":"summary","content":"kurz"},{"label":"keywords","content":"a, b"}]`}
	g := NewVariantGenerator(chat, logger.NewNop())

	variants := g.TransformForArticle(context.Background(), "Titel", "Inhalt")

	require.Len(t, variants, 3)
	assert.Equal(t, OriginalVariantLabel, variants[0].Label)
	assert.Equal(t, "Inhalt", variants[0].Content)
	assert.Equal(t, "summary", variants[1].Label)
}

func TestVariantGenerator_ProviderFailureKeepsOriginalOnly(t *testing.T) {
	chat := &fakeChat{err: errors.New("timeout")}
	g := NewVariantGenerator(chat, logger.NewNop())

	variants := g.TransformForDiscussion(context.Background(), "Artikel", "Beitrag", "Inhalt")

	require.Len(t, variants, 1)
	assert.Equal(t, OriginalVariantLabel, variants[0].Label)
}

func TestVariantGenerator_MalformedJSONKeepsOriginalOnly(t *testing.T) {
	chat := &fakeChat{reply: "keine json antwort"}
	g := NewVariantGenerator(chat, logger.NewNop())

	variants := g.TransformForArticle(context.Background(), "Titel", "Inhalt")

	require.Len(t, variants, 1)
}

func TestDedupeVariants(t *testing.T) {
	variants := dedupeVariants([]domain.EmbeddingVariant{
		{Label: "original", Content: "Inhalt"},
		{Label: "summary", Content: "  Inhalt  "},
		{Label: "keywords", Content: "   "},
		{Label: "stance", Content: "These"},
	})

	require.Len(t, variants, 2)
	// first-seen label wins on duplicate content
	assert.Equal(t, "original", variants[0].Label)
	assert.Equal(t, "stance", variants[1].Label)
}

func TestClassifier_RootsBatchedNestedIndividually(t *testing.T) {
	chat := &fakeChat{replies: map[string]string{
		"Beiträge:": `[{"id":1,"sentiment":"positive","response_depth":"in_depth"},{"id":2,"sentiment":"negative","response_depth":"trivial"}]`,
		"Antwort:":  `{"sentiment":"neutral","response_depth":"off_topic"}`,
	}}
	c := NewClassifier(chat, logger.NewNop())

	discussions := []domain.Discussion{
		{ID: 1, Title: "Erster", Content: "a", ArticleID: int64Ptr(7)},
		{ID: 2, Title: "Zweiter", Content: "b", ArticleID: int64Ptr(7)},
		{ID: 3, Title: "Antwort auf Ersten", Content: "c", ParentID: int64Ptr(1)},
	}

	result := c.Classify(context.Background(), "Artikel", "Inhalt", discussions)

	require.Len(t, result, 3)
	assert.Equal(t, domain.SentimentPositive, result[1].Sentiment)
	assert.Equal(t, domain.DepthTrivial, result[2].ResponseDepth)
	assert.Equal(t, domain.DepthOffTopic, result[3].ResponseDepth)
	// one batched call for both roots plus one call for the nested reply
	assert.Len(t, chat.calls, 2)
}

func TestClassifier_ProviderFailureFallsBackForAll(t *testing.T) {
	chat := &fakeChat{err: errors.New("model down")}
	c := NewClassifier(chat, logger.NewNop())

	discussions := []domain.Discussion{
		{ID: 1, ArticleID: int64Ptr(7)},
		{ID: 2, ParentID: int64Ptr(1)},
	}

	result := c.Classify(context.Background(), "Artikel", "Inhalt", discussions)

	require.Len(t, result, 2)
	assert.Equal(t, domain.FallbackClassification(), result[1])
	assert.Equal(t, domain.FallbackClassification(), result[2])
}

func TestClassifier_InvalidLabelsNormalize(t *testing.T) {
	chat := &fakeChat{reply: `[{"id":1,"sentiment":"ecstatic","response_depth":"galactic"}]`}
	c := NewClassifier(chat, logger.NewNop())

	result := c.Classify(context.Background(), "Artikel", "Inhalt", []domain.Discussion{
		{ID: 1, ArticleID: int64Ptr(7)},
	})

	assert.Equal(t, domain.SentimentNeutral, result[1].Sentiment)
	assert.Equal(t, domain.DepthSubstantive, result[1].ResponseDepth)
}

func TestClassifier_NestedWithMissingParentFallsBack(t *testing.T) {
	chat := &fakeChat{reply: `{"sentiment":"positive","response_depth":"in_depth"}`}
	c := NewClassifier(chat, logger.NewNop())

	result := c.Classify(context.Background(), "Artikel", "Inhalt", []domain.Discussion{
		{ID: 5, ParentID: int64Ptr(99)},
	})

	assert.Equal(t, domain.FallbackClassification(), result[5])
	assert.Empty(t, chat.calls)
}

func TestReranker_ReordersKnownIDs(t *testing.T) {
	chat := &fakeChat{reply: `[3, 1]`}
	r := NewReranker(chat, logger.NewNop())

	order := r.Rerank(context.Background(), "anfrage", []RerankCandidate{
		{ID: 1, Title: "eins"}, {ID: 2, Title: "zwei"}, {ID: 3, Title: "drei"},
	})

	assert.Equal(t, []int64{3, 1, 2}, order)
}

func TestReranker_IgnoresInventedIDs(t *testing.T) {
	chat := &fakeChat{reply: `[99, 2, 1]`}
	r := NewReranker(chat, logger.NewNop())

	order := r.Rerank(context.Background(), "anfrage", []RerankCandidate{
		{ID: 1}, {ID: 2},
	})

	assert.Equal(t, []int64{2, 1}, order)
}

func TestReranker_FailureKeepsBaseline(t *testing.T) {
	chat := &fakeChat{err: errors.New("model down")}
	r := NewReranker(chat, logger.NewNop())

	order := r.Rerank(context.Background(), "anfrage", []RerankCandidate{
		{ID: 1}, {ID: 2}, {ID: 3},
	})

	assert.Equal(t, []int64{1, 2, 3}, order)
}

func TestReranker_SingleCandidateSkipsModel(t *testing.T) {
	chat := &fakeChat{reply: `[1]`}
	r := NewReranker(chat, logger.NewNop())

	order := r.Rerank(context.Background(), "anfrage", []RerankCandidate{{ID: 1}})

	assert.Equal(t, []int64{1}, order)
	assert.Empty(t, chat.calls)
}

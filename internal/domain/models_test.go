package domain

import (
	"strings"
	"testing"
)

func TestNormalizeSentiment(t *testing.T) {
	cases := map[string]Sentiment{
		"positive": SentimentPositive,
		"negative": SentimentNegative,
		"neutral":  SentimentNeutral,
		"POSITIVE": SentimentNeutral,
		"happy":    SentimentNeutral,
		"":         SentimentNeutral,
	}

	for input, want := range cases {
		if got := NormalizeSentiment(input); got != want {
			t.Errorf("NormalizeSentiment(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeDepth(t *testing.T) {
	cases := map[string]Depth{
		"trivial":     DepthTrivial,
		"substantive": DepthSubstantive,
		"in_depth":    DepthInDepth,
		"off_topic":   DepthOffTopic,
		"deep":        DepthSubstantive,
		"":            DepthSubstantive,
	}

	for input, want := range cases {
		if got := NormalizeDepth(input); got != want {
			t.Errorf("NormalizeDepth(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHashContent_Deterministic(t *testing.T) {
	first := HashContent("hello world")
	second := HashContent("hello world")
	if first != second {
		t.Errorf("HashContent() not deterministic: %q != %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("HashContent() length = %d, want 64 hex chars", len(first))
	}
	if first == HashContent("hello world!") {
		t.Error("HashContent() collision on different content")
	}
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("x", MaxErrorLength+500)
	if got := TruncateError(long); len(got) != MaxErrorLength {
		t.Errorf("TruncateError() length = %d, want %d", len(got), MaxErrorLength)
	}
	if got := TruncateError("short"); got != "short" {
		t.Errorf("TruncateError(short) = %q", got)
	}
	if got := TruncateError(""); got == "" {
		t.Error("TruncateError(empty) should substitute a placeholder")
	}
}

func TestFuseRankedIDs(t *testing.T) {
	// Id 11 appears in both lists at rank 1/rank 1 and must win; 10 and 12
	// tie on score and best rank, so id ascending breaks the tie.
	fused := FuseRankedIDs([]int64{10, 11}, []int64{11, 12})

	want := []int64{11, 10, 12}
	if len(fused) != len(want) {
		t.Fatalf("FuseRankedIDs() returned %d ids, want %d", len(fused), len(want))
	}
	for i, id := range want {
		if fused[i] != id {
			t.Errorf("position %d = %d, want %d", i, fused[i], id)
		}
	}
}

func TestFuseRankedIDs_SingleList(t *testing.T) {
	fused := FuseRankedIDs([]int64{3, 1, 2})
	want := []int64{3, 1, 2}
	for i, id := range want {
		if fused[i] != id {
			t.Errorf("position %d = %d, want %d", i, fused[i], id)
		}
	}
}

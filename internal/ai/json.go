// Package ai holds the LLM-backed helpers: summarization and query rewriting,
// embedding variant generation, discussion classification, and result
// reranking. Every helper is best-effort: a failed or malformed model reply
// degrades to a documented fallback instead of failing the caller.
package ai

import (
	"encoding/json"
	"strings"
)

// stripCodeFences removes a surrounding markdown code fence, if present.
// Models frequently wrap JSON replies in ```json blocks despite instructions.
func stripCodeFences(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// decodeJSONReply unmarshals a model reply into out, tolerating code fences.
func decodeJSONReply(reply string, out any) error {
	return json.Unmarshal([]byte(stripCodeFences(reply)), out)
}

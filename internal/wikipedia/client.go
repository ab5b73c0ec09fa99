// Package wikipedia fetches random German Wikipedia articles and parses
// their Diskussion pages into threaded discussion items for sample data.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	apiBaseURL = "https://de.wikipedia.org/w/api.php"
	userAgent  = "doc-indexer/1.0 (sample data loader)"

	// The random generator returns at most 20 pages per request.
	maxBatchSize = 20

	defaultSection = "Allgemein"

	clientTimeout = 30 * time.Second
)

// signaturePattern matches a signed talk-page contribution: optional text,
// an optional author link, and a German-locale timestamp.
var signaturePattern = regexp.MustCompile(
	`(?P<text>.*?)(?P<author>\[\[(?:Benutzer|User)(?::|_talk:)[^\]]+\]\].*)?(?P<timestamp>\d{1,2}:\d{2},\s\d{1,2}\.\s[^\d]+\s\d{4}\s\((?:CET|CEST|UTC)\))`,
)

// Article is a fetched Wikipedia article.
type Article struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// DiscussionItem is one signed contribution of a Diskussion page. The item
// and parent ids are local to the parsed page; ParentItemID is empty for
// top-level contributions.
type DiscussionItem struct {
	ItemID       string `json:"item_id"`
	ParentItemID string `json:"parent_item_id,omitempty"`
	Section      string `json:"section"`
	Text         string `json:"text"`
}

// Client talks to the German Wikipedia API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Wikipedia API client.
func NewClient() *Client {
	return &Client{
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// FetchRandomArticles fetches up to count random articles. Pages without an
// extract are skipped, so several batches may be needed; fetching stops after
// a bounded number of attempts even when count is not reached.
func (c *Client) FetchRandomArticles(ctx context.Context, count int) ([]Article, error) {
	results := make([]Article, 0, count)

	maxAttempts := count / 10
	if maxAttempts < 60 {
		maxAttempts = 60
	}

	for attempt := 0; attempt < maxAttempts && len(results) < count; attempt++ {
		remaining := count - len(results)
		batchSize := remaining
		if batchSize > maxBatchSize {
			batchSize = maxBatchSize
		}

		batch, fetchErr := c.fetchBatch(ctx, batchSize)
		if fetchErr != nil {
			return nil, fetchErr
		}
		results = append(results, batch...)
	}

	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// FetchDiscussionItems fetches and parses the Diskussion page of an article.
// A missing talk page yields no items and no error.
func (c *Client) FetchDiscussionItems(ctx context.Context, articleTitle string) ([]DiscussionItem, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "revisions")
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")
	params.Set("titles", "Diskussion:"+articleTitle)

	body, getErr := c.get(ctx, params)
	if getErr != nil {
		return nil, getErr
	}

	var resp struct {
		Query struct {
			Pages []struct {
				Missing   bool `json:"missing"`
				Revisions []struct {
					Slots struct {
						Main struct {
							Content string `json:"content"`
						} `json:"main"`
					} `json:"slots"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return nil, fmt.Errorf("decode discussion response: %w", decodeErr)
	}

	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return nil, nil
	}
	if len(resp.Query.Pages[0].Revisions) == 0 {
		return nil, nil
	}

	return ParseDiscussionItems(resp.Query.Pages[0].Revisions[0].Slots.Main.Content), nil
}

func (c *Client) fetchBatch(ctx context.Context, batchSize int) ([]Article, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "random")
	params.Set("grnnamespace", "0")
	params.Set("grnlimit", strconv.Itoa(batchSize))
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("exintro", "0")

	body, getErr := c.get(ctx, params)
	if getErr != nil {
		return nil, getErr
	}

	var resp struct {
		Query struct {
			Pages map[string]Article `json:"pages"`
		} `json:"query"`
	}
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return nil, fmt.Errorf("decode article response: %w", decodeErr)
	}

	articles := make([]Article, 0, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if page.Title == "" || page.Extract == "" {
			continue
		}
		articles = append(articles, page)
	}
	return articles, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("wikipedia request: %w", doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia request failed with status %d", resp.StatusCode)
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}
	return body, nil
}

// ParseDiscussionItems parses talk-page wikitext into discussion items.
// Section headers (== ... ==) group items; leading colons give the reply
// depth, and each item's parent is the most recent item one level up.
func ParseDiscussionItems(wikiText string) []DiscussionItem {
	if strings.TrimSpace(wikiText) == "" {
		return nil
	}

	var items []DiscussionItem
	lastItemIDByDepth := make(map[int]string)
	currentSection := defaultSection

	textIdx := signaturePattern.SubexpIndex("text")

	for _, line := range strings.Split(wikiText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "==") && strings.HasSuffix(trimmed, "==") {
			currentSection = strings.TrimSpace(strings.ReplaceAll(trimmed, "=", ""))
			continue
		}

		depth := countLeadingColons(line)
		content := strings.TrimSpace(strings.TrimLeft(trimmed, ":"))

		match := signaturePattern.FindStringSubmatch(content)
		if match == nil {
			continue
		}

		text := strings.TrimSpace(match[textIdx])
		if text == "" {
			continue
		}

		id := "discussion-item-" + strconv.Itoa(len(items)+1)
		parentID := ""
		if depth > 0 {
			parentID = lastItemIDByDepth[depth-1]
		}

		items = append(items, DiscussionItem{
			ItemID:       id,
			ParentItemID: parentID,
			Section:      currentSection,
			Text:         text,
		})

		lastItemIDByDepth[depth] = id
		for level := range lastItemIDByDepth {
			if level > depth {
				delete(lastItemIDByDepth, level)
			}
		}
	}
	return items
}

func countLeadingColons(line string) int {
	count := 0
	for count < len(line) && line[count] == ':' {
		count++
	}
	return count
}

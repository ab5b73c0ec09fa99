// Package embeddings provides a client for the Ollama embedding API.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// OllamaClient calls the Ollama /api/embed endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewOllamaClient creates an embedding client from configuration.
func NewOllamaClient(cfg config.EmbeddingsConfig, m *metrics.Metrics) *OllamaClient {
	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
}

// Model returns the configured embedding model name.
func (c *OllamaClient) Model() string {
	return c.model
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns the vector for a single text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := c.embedBatch(ctx, texts)
	if err != nil {
		c.metrics.RecordEmbedCall("error")
		return nil, err
	}
	c.metrics.RecordEmbedCall("ok")
	return vectors, nil
}

func (c *OllamaClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, marshalErr := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal embed request: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embed", bytes.NewReader(body))
	if reqErr != nil {
		return nil, fmt.Errorf("create embed request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("embed request: %w", doErr)
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("read embed response: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed embedResponse
	if unmarshalErr := json.Unmarshal(payload, &parsed); unmarshalErr != nil {
		return nil, fmt.Errorf("decode embed response: %w", unmarshalErr)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embed error: %s", parsed.Error)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}

	return parsed.Embeddings, nil
}

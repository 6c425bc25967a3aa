package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tyre-assistant/config"
	"tyre-assistant/internal/util"
)

// Embedder calls the embedding provider. Vectors must match the
// dimensionality of rows already stored; that is the provider's contract,
// not checked here.
type Embedder struct {
	endpoint string
	headers  map[string]string
	httpc    *http.Client
}

// NewEmbedder creates an embedding client from config.
func NewEmbedder(cfg config.LLMConfig) *Embedder {
	return &Embedder{
		endpoint: cfg.EmbeddingEndpoint,
		headers:  gatewayHeaders(cfg),
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

type embedPayload struct {
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for one text. Errors propagate: retrieval
// cannot proceed without an embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint not configured")
	}

	start := time.Now()
	defer func() {
		util.EmbeddingLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(embedPayload{Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	for k, v := range e.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding provider returned no data")
	}

	return parsed.Data[0].Embedding, nil
}

// ErrRateLimited signals HTTP 429; ingestion workers back off on it.
var ErrRateLimited = errors.New("embedding provider rate limited")

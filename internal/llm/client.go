// Package llm contains thin HTTP clients for the completion and
// embedding providers. Both speak the chat-completions / embeddings wire
// shape behind an API-management gateway.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tyre-assistant/config"
	"tyre-assistant/internal/util"
)

// ChatRequest is one completion call. Operation labels the metrics.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Operation   string
}

// Client calls the completion provider.
type Client struct {
	endpoint string
	headers  map[string]string
	httpc    *http.Client
}

// NewClient creates a completion client from config.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint: cfg.ChatEndpoint,
		headers:  gatewayHeaders(cfg),
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func gatewayHeaders(cfg config.LLMConfig) map[string]string {
	return map[string]string{
		"Content-Type":              "application/json",
		"Ocp-Apim-Subscription-Key": cfg.SubscriptionKey,
		"x-service-line":            cfg.ServiceLine,
		"x-brand":                   cfg.Brand,
		"x-project":                 cfg.Project,
		"api-version":               cfg.APIVersion,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat completion and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("chat endpoint not configured")
	}

	start := time.Now()
	defer func() {
		util.CompletionLatency.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
	}()

	payload := chatPayload{
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat provider returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

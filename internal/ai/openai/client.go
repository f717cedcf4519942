// Package openai implements ai.Client over the OpenAI Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docgen-backend/internal/ai"
	"docgen-backend/internal/shared/telemetry"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
)

// Client implements ai.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a new OpenAI client. timeout bounds each call; zero means no limit.
func NewClient(apiKey, model string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OPENAI_MODEL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) Generate(ctx context.Context, req ai.Request) (any, error) {
	temp := float32(0)
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: ai.SystemInstruction()},
			{Role: "user", Content: ai.BuildPrompt(req)},
		},
		Temperature:    &temp,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, ai.Unexpected(providerName, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, ai.Unexpected(providerName, "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, ai.Unexpected(providerName, "OpenAI request timed out", err)
		}
		return nil, ai.Unexpected(providerName, "OpenAI request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.Unexpected(providerName, "read response", err)
	}

	var parsed chatResponse
	parseErr := json.Unmarshal(body, &parsed)
	if parseErr == nil && parsed.Error != nil {
		return nil, ai.Provider(providerName, fmt.Sprintf("OpenAI error: %s (%s)", parsed.Error.Message, parsed.Error.Type), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, ai.Provider(providerName, fmt.Sprintf("OpenAI returned status %d", resp.StatusCode), nil)
	}
	if parseErr != nil {
		return nil, ai.Unexpected(providerName, "OpenAI response parse", parseErr)
	}
	if len(parsed.Choices) == 0 {
		return nil, ai.Provider(providerName, "OpenAI response missing choices", nil)
	}

	usage := map[string]any{
		"model":       c.model,
		"doc_type":    req.DocType,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if parsed.Usage != nil {
		usage["prompt_tokens"] = parsed.Usage.PromptTokens
		usage["completion_tokens"] = parsed.Usage.CompletionTokens
	}
	telemetry.Info("ai.response", usage)

	out, err := ai.DecodeOutput(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, ai.Unexpected(providerName, "OpenAI returned invalid JSON", err)
	}
	return out, nil
}

var _ ai.Client = (*Client)(nil)

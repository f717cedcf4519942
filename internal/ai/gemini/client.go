// Package gemini implements ai.Client with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"docgen-backend/internal/ai"
	"docgen-backend/internal/shared/telemetry"
)

const providerName = "gemini"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls the Gemini API for JSON output.
type Client struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewClient builds a Gemini API client. timeout bounds each call; zero means no limit.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: gc.Models, model: model, timeout: timeout}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Generate(ctx context.Context, req ai.Request) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(ai.SystemInstruction(), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       &temperature,
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(ai.BuildPrompt(req)), cfg)
	if err != nil {
		return nil, classify(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"model":       c.model,
		"doc_type":    req.DocType,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		fields["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["output_tokens"] = resp.UsageMetadata.CandidatesTokenCount
	}
	telemetry.Info("ai.response", fields)

	out, err := ai.DecodeOutput(text)
	if err != nil {
		return nil, ai.Unexpected(providerName, "Gemini returned invalid JSON", err)
	}
	return out, nil
}

// classify maps SDK errors onto the two error kinds. An API error with a status is the provider
// refusing the request; anything else (transport, cancellation, timeout) is unexpected.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.Provider(providerName, fmt.Sprintf("Gemini API error %d", apiErr.Code), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return ai.Provider(providerName, fmt.Sprintf("Gemini API error %d", apiErrPtr.Code), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.Unexpected(providerName, "Gemini request timed out", err)
	}
	return ai.Unexpected(providerName, "Gemini request failed", err)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ai.Unexpected(providerName, "Gemini returned no response", nil)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", ai.Provider(providerName, fmt.Sprintf("Gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason), nil)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ai.Provider(providerName, "Gemini returned no candidates", nil)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ai.Unexpected(providerName, "Gemini returned empty content", nil)
	}
	return b.String(), nil
}

var _ ai.Client = (*Client)(nil)

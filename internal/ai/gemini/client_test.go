package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"docgen-backend/internal/ai"
)

type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	gotModel string
	gotText  string
	gotCfg   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotCfg = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotText = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGenerateDecodesJSON(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"summary":"Builds things","experience_list":[{"title":"Engineer"}],"years":5}`)}
	c := &Client{models: fake, model: "gemini-test"}

	out, err := c.Generate(context.Background(), ai.Request{DocType: "resume", Fields: map[string]any{"name": "Ada"}, Context: "backend"})
	require.NoError(t, err)

	obj := out.(map[string]any)
	assert.Equal(t, "Builds things", obj["summary"])
	assert.Equal(t, json.Number("5"), obj["years"])
	assert.Equal(t, "gemini-test", fake.gotModel)
	assert.Equal(t, "application/json", fake.gotCfg.ResponseMIMEType)
	assert.Contains(t, fake.gotText, "Document type: resume")
	assert.Contains(t, fake.gotText, "backend")
}

func TestGenerateAPIErrorIsProviderError(t *testing.T) {
	fake := &fakeModels{err: genai.APIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}}
	c := &Client{models: fake, model: "gemini-test"}

	_, err := c.Generate(context.Background(), ai.Request{DocType: "resume"})
	require.Error(t, err)
	assert.Equal(t, ai.ProviderError, ai.KindOf(err))
}

func TestGenerateTransportErrorIsUnexpected(t *testing.T) {
	fake := &fakeModels{err: errors.New("dial tcp: connection refused")}
	c := &Client{models: fake, model: "gemini-test"}

	_, err := c.Generate(context.Background(), ai.Request{DocType: "resume"})
	assert.Equal(t, ai.UnexpectedError, ai.KindOf(err))
}

func TestGenerateInvalidJSONIsUnexpected(t *testing.T) {
	fake := &fakeModels{resp: textResponse("Sure! Here is your resume.")}
	c := &Client{models: fake, model: "gemini-test"}

	_, err := c.Generate(context.Background(), ai.Request{DocType: "resume"})
	assert.Equal(t, ai.UnexpectedError, ai.KindOf(err))
}

func TestGenerateBlockedPromptIsProviderError(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}}
	c := &Client{models: fake, model: "gemini-test"}

	_, err := c.Generate(context.Background(), ai.Request{DocType: "resume"})
	assert.Equal(t, ai.ProviderError, ai.KindOf(err))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "gemini-test", 0)
	assert.Error(t, err)
}

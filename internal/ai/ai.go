// Package ai produces field mappings for a document type from an AI completion provider.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind separates failures the provider reported from everything else.
type Kind string

const (
	ProviderError   Kind = "provider"
	UnexpectedError Kind = "unexpected"
)

// Error is the only error type clients return.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Provider builds a ProviderError.
func Provider(provider, message string, cause error) *Error {
	return &Error{Kind: ProviderError, Provider: provider, Message: message, Err: cause}
}

// Unexpected builds an UnexpectedError.
func Unexpected(provider, message string, cause error) *Error {
	return &Error{Kind: UnexpectedError, Provider: provider, Message: message, Err: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are unexpected.
func KindOf(err error) Kind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return UnexpectedError
}

// Request is one generation call.
type Request struct {
	DocType string
	Fields  map[string]any
	Context string
}

// Client generates structured fields. The returned value is whatever JSON the model produced;
// callers decide whether its shape is acceptable.
type Client interface {
	Generate(ctx context.Context, req Request) (any, error)
	Name() string
}

// Disabled is used when no provider is configured.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Generate(context.Context, Request) (any, error) {
	return nil, Provider("none", "AI provider is not configured", nil)
}

// DecodeOutput parses model text as JSON, tolerating a surrounding markdown code fence.
// Numbers are kept as json.Number so integers render without a decimal point.
func DecodeOutput(text string) (any, error) {
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		return nil, errors.New("empty model output")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode model output: trailing data after JSON value")
	}
	return out, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// MarshalFields renders caller fields for a prompt.
func MarshalFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fields); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

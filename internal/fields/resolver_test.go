package fields

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-backend/internal/ai"
	"docgen-backend/internal/shared/apperr"
)

type fakeAI struct {
	out    any
	err    error
	called int
	got    ai.Request
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) Generate(_ context.Context, req ai.Request) (any, error) {
	f.called++
	f.got = req
	return f.out, f.err
}

type staticSchemas map[string]map[string]any

func (s staticSchemas) Schema(docType string) (map[string]any, error) {
	return s[docType], nil
}

func TestManualModeRequiresFields(t *testing.T) {
	r := &Resolver{}
	for _, f := range []map[string]any{nil, {}} {
		_, err := r.Resolve(context.Background(), Input{DocType: "resume", Fields: f})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	}
}

func TestManualModeUsesFieldsVerbatim(t *testing.T) {
	fake := &fakeAI{}
	r := &Resolver{AI: fake}
	in := map[string]any{"name": "Ada", "skills": []any{"go"}, "empty": ""}

	res, err := r.Resolve(context.Background(), Input{DocType: "resume", Fields: in})
	require.NoError(t, err)
	assert.Equal(t, in, res.Fields)
	assert.Equal(t, ModeManual, res.Mode)
	assert.Zero(t, fake.called)
}

func TestAIMergeLaw(t *testing.T) {
	fake := &fakeAI{out: map[string]any{"a": "x", "experience_list": []any{json.Number("1"), json.Number("2")}}}
	r := &Resolver{AI: fake}

	res, err := r.Resolve(context.Background(), Input{
		DocType: "resume",
		UseAI:   true,
		Fields:  map[string]any{"a": "y", "experience_list": []any{json.Number("9")}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "y", "experience_list": []any{json.Number("1"), json.Number("2")}}, res.Fields)
	assert.Equal(t, ModeAI, res.Mode)
}

func TestAIMergeFalsyCallerValueDoesNotOverride(t *testing.T) {
	fake := &fakeAI{out: map[string]any{"a": "x", "b": "keep", "c": "keep", "d": "keep"}}
	r := &Resolver{AI: fake}

	res, err := r.Resolve(context.Background(), Input{
		DocType: "resume",
		UseAI:   true,
		Fields:  map[string]any{"a": "", "b": nil, "c": json.Number("0"), "d": []any{}, "e": "new"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "x", "b": "keep", "c": "keep", "d": "keep", "e": "new"}, res.Fields)
}

func TestAIProtectedKeysNeverFromCaller(t *testing.T) {
	fake := &fakeAI{out: map[string]any{"summary": "s"}}
	r := &Resolver{AI: fake}

	res, err := r.Resolve(context.Background(), Input{
		DocType: "resume",
		UseAI:   true,
		Fields: map[string]any{
			"projects":     []any{"stub"},
			"education":    []any{"stub"},
			"achievements": []any{"stub"},
			"skills":       []any{"stub"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "s"}, res.Fields)
}

func TestAIReceivesEmptyFieldsAndContext(t *testing.T) {
	fake := &fakeAI{out: map[string]any{}}
	r := &Resolver{AI: fake}

	_, err := r.Resolve(context.Background(), Input{DocType: "cover_letter", UseAI: true, AIContext: "for Acme"})
	require.NoError(t, err)
	assert.Equal(t, "cover_letter", fake.got.DocType)
	assert.NotNil(t, fake.got.Fields)
	assert.Equal(t, "for Acme", fake.got.Context)
}

func TestAIErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"provider", ai.Provider("fake", "quota exceeded", nil), apperr.KindAIProvider},
		{"unexpected", ai.Unexpected("fake", "timeout", errors.New("deadline")), apperr.KindUnexpected},
		{"untyped", errors.New("boom"), apperr.KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Resolver{AI: &fakeAI{err: tc.err}}
			_, err := r.Resolve(context.Background(), Input{DocType: "resume", UseAI: true})
			require.Error(t, err)
			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, appErr.Kind)
			assert.Contains(t, appErr.Message, "AI generation failed")
		})
	}
}

func TestAINonObjectResultIsValidationError(t *testing.T) {
	r := &Resolver{AI: &fakeAI{out: []any{"a"}}}
	_, err := r.Resolve(context.Background(), Input{DocType: "resume", UseAI: true})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestNilAIClientIsProviderError(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), Input{DocType: "resume", UseAI: true})
	assert.True(t, apperr.IsKind(err, apperr.KindAIProvider))
}

func TestSchemaValidation(t *testing.T) {
	schemas := staticSchemas{"invoice": {
		"type":     "object",
		"required": []any{"invoice_number", "total"},
		"properties": map[string]any{
			"total": map[string]any{"type": "number"},
		},
	}}
	r := &Resolver{Schemas: schemas}

	_, err := r.Resolve(context.Background(), Input{DocType: "invoice", Fields: map[string]any{"total": "abc"}})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Details, 2)

	_, err = r.Resolve(context.Background(), Input{DocType: "invoice", Fields: map[string]any{"invoice_number": "A-1", "total": json.Number("12.5")}})
	assert.NoError(t, err)

	_, err = r.Resolve(context.Background(), Input{DocType: "resume", Fields: map[string]any{"x": "y"}})
	assert.NoError(t, err)
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, "", json.Number("0"), json.Number("0.0"), 0, 0.0, []any{}, map[string]any{}, []string{}}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v", v)
	}
	truthy := []any{true, "x", json.Number("1"), 3, -1.5, []any{nil}, map[string]any{"k": nil}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v", v)
	}
}

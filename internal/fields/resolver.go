// Package fields turns a generation request into the mapping used to fill a template.
package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"docgen-backend/internal/ai"
	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/telemetry"
)

const (
	ModeManual = "manual"
	ModeAI     = "ai"
)

// ProtectedKeys are always taken from the AI result, never from caller input.
var ProtectedKeys = map[string]struct{}{
	"experience_list": {},
	"projects":        {},
	"education":       {},
	"achievements":    {},
	"skills":          {},
}

// SchemaSource looks up the optional JSON schema for a document type.
type SchemaSource interface {
	Schema(docType string) (map[string]any, error)
}

// Input is one resolution request.
type Input struct {
	DocType   string
	Fields    map[string]any
	UseAI     bool
	AIContext string
	RequestID string
}

// Result is the resolved mapping and how it was produced.
type Result struct {
	Fields map[string]any
	Mode   string
}

// Resolver produces field mappings. AI may be nil when only manual mode is used.
type Resolver struct {
	AI      ai.Client
	Schemas SchemaSource
}

// Resolve returns the final field mapping, or an *apperr.Error describing why it could not.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	var res Result
	if in.UseAI {
		resolved, err := r.fromAI(ctx, in)
		if err != nil {
			return Result{}, err
		}
		res = Result{Fields: resolved, Mode: ModeAI}
	} else {
		if len(in.Fields) == 0 {
			return Result{}, apperr.Validation("fields is required when use_gemini is false", nil)
		}
		res = Result{Fields: in.Fields, Mode: ModeManual}
	}

	if err := r.validate(in.DocType, res.Fields); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (r *Resolver) fromAI(ctx context.Context, in Input) (map[string]any, error) {
	client := r.AI
	if client == nil {
		client = ai.Disabled{}
	}
	callerFields := in.Fields
	if callerFields == nil {
		callerFields = map[string]any{}
	}

	start := time.Now()
	out, err := client.Generate(ctx, ai.Request{DocType: in.DocType, Fields: callerFields, Context: in.AIContext})
	metrics.ObserveStage("ai", time.Since(start))
	if err != nil {
		telemetry.Error("ai.generate.failed", map[string]any{
			"request_id": in.RequestID,
			"doc_type":   in.DocType,
			"provider":   client.Name(),
			"kind":       string(ai.KindOf(err)),
			"error":      err,
		})
		msg := "AI generation failed: " + err.Error()
		if ai.KindOf(err) == ai.ProviderError {
			return nil, apperr.AIProvider(msg, err)
		}
		return nil, apperr.Unexpected(msg, err)
	}

	generated, ok := out.(map[string]any)
	if !ok {
		return nil, apperr.Validation("AI returned non-object fields", map[string]any{"type": jsonTypeName(out)})
	}
	return Merge(generated, in.Fields), nil
}

// Merge overlays caller values onto generated ones. A caller value wins only when it is truthy and its
// key is not protected. generated is modified in place and returned.
func Merge(generated, caller map[string]any) map[string]any {
	if generated == nil {
		generated = map[string]any{}
	}
	for k, v := range caller {
		if _, protected := ProtectedKeys[k]; protected {
			continue
		}
		if Truthy(v) {
			generated[k] = v
		}
	}
	return generated
}

// Truthy reports whether v counts as a supplied value: nil, false, zero, empty strings and
// empty collections do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t != ""
		}
		return f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func (r *Resolver) validate(docType string, resolved map[string]any) error {
	if r.Schemas == nil {
		return nil
	}
	schema, err := r.Schemas.Schema(docType)
	if err != nil {
		return apperr.Unexpected("Could not load field schema", err)
	}
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(resolved))
	if err != nil {
		return apperr.Unexpected("Field schema is invalid", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	sort.Strings(problems)
	return apperr.Validation(fmt.Sprintf("fields do not match the %s schema", docType), problems)
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

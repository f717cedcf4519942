package render

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// number keeps a fractional value numeric for comparisons while printing it
// the short way ("12.5", not "12.500000").
type number float64

func (n number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// templateContext converts resolved fields into a pongo2 context. Top-level
// keys that are not identifiers cannot be referenced by a template and are
// returned separately so the caller can report them.
func templateContext(fields map[string]any) (pongo2.Context, []string) {
	ctx := make(pongo2.Context, len(fields))
	var skipped []string
	for key, value := range fields {
		if !identifierPattern.MatchString(key) {
			skipped = append(skipped, key)
			continue
		}
		ctx[key] = normalizeValue(value)
	}
	return ctx, skipped
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return v.String()
	case float64:
		return normalizeFloat(v)
	case float32:
		return normalizeFloat(float64(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return value
	}
}

func normalizeFloat(f float64) any {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return number(f)
}

func init() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			return pongo2.AsValue(strings.TrimSpace(in.String())), nil
		})
	}
}

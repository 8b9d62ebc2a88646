package llmjson

import (
	"errors"
	"strings"
)

var errNotObject = errors.New("top-level json value is not an object")

// placeholders are the strings models emit when a field is missing.
var placeholders = map[string]struct{}{"N/A": {}, "NAN": {}, "": {}}

// Normalize replaces placeholder strings ("N/A", "NAN", "", any case, any
// surrounding whitespace) with nil throughout a decoded JSON tree.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case string:
		if IsPlaceholder(t) {
			return nil
		}
		return t
	default:
		return v
	}
}

// IsPlaceholder reports whether s stands for "no value".
func IsPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}

func normalizeRecord(rec Record) Record {
	return Normalize(rec).(map[string]any)
}

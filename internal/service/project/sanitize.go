package project

import (
	"html"
)

// Escape html in every string of decoded JSON value, object keys included
// Numbers, bools and nulls are returned as is
func sanitizeValue(v any) any {
	switch v := v.(type) {
	case string:
		return html.EscapeString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[html.EscapeString(key)] = sanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

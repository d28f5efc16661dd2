package core

import "strings"

// IntFromAny converts a numeric value (float64, int, or int64) to int, returning 0 for unsupported types.
func IntFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// StringFromAny returns v when it is a string, and "" otherwise.
func StringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

// StringsFromAny converts a decoded JSON array to a string slice, skipping non-string and empty entries.
func StringsFromAny(v any) []string {
	switch items := v.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Lookup walks a dotted path ("reasoner.confidence") through nested decoded JSON objects.
func Lookup(m map[string]any, path string) (any, bool) {
	var current any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

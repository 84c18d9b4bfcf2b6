package expressions

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	tokenOpen  = "{{"
	tokenClose = "}}"
)

// HasTemplate reports whether a string contains any {{...}} references.
func HasTemplate(s string) bool {
	return strings.Contains(s, tokenOpen)
}

// Format substitutes {{path}} tokens in a template against the execution
// context. Resolved objects and arrays are embedded as JSON; scalars use
// their plain string form.
//
// When a referenced path does not resolve: skipMissing=true makes the whole
// result undefined (ok=false), so action inputs with unmet dependencies are
// reported as missing rather than half-filled; skipMissing=false substitutes
// an empty string, which lets condition expressions compare against "".
func Format(template string, context map[string]any, skipMissing bool) (string, bool) {
	if !HasTemplate(template) {
		return template, true
	}

	var result strings.Builder
	result.Grow(len(template))

	i := 0
	for i < len(template) {
		idx := strings.Index(template[i:], tokenOpen)
		if idx == -1 {
			result.WriteString(template[i:])
			break
		}

		result.WriteString(template[i : i+idx])
		start := i + idx + len(tokenOpen)

		end := strings.Index(template[start:], tokenClose)
		if end == -1 {
			// Unclosed token: keep the remainder verbatim.
			result.WriteString(template[i+idx:])
			break
		}
		end += start

		path := strings.TrimSpace(template[start:end])
		val, ok := Resolve(context, path)
		if !ok || val == nil {
			if skipMissing {
				return "", false
			}
		} else {
			result.WriteString(stringify(val))
		}

		i = end + len(tokenClose)
	}

	return result.String(), true
}

// FormatValue recursively formats every string leaf of a value. Map values
// that format to undefined make the whole result undefined (the action's
// inputs are incomplete); slice entries that format to undefined are dropped.
// Non-string, non-container leaves pass through unchanged.
func FormatValue(value any, context map[string]any) (any, bool) {
	switch v := value.(type) {
	case string:
		return Format(v, context, true)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			formatted, ok := FormatValue(item, context)
			if !ok {
				return nil, false
			}
			out[key] = formatted
		}
		return out, true
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			formatted, ok := FormatValue(item, context)
			if !ok {
				continue
			}
			out = append(out, formatted)
		}
		return out, true
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			formatted, ok := Format(item, context, true)
			if !ok {
				continue
			}
			out = append(out, formatted)
		}
		return out, true
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			formatted, ok := Format(item, context, true)
			if !ok {
				return nil, false
			}
			out[key] = formatted
		}
		return out, true
	default:
		return value, true
	}
}

// stringify converts a resolved value into its inline string representation.
// Containers are JSON-encoded; numbers render without exponent notation.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.RawMessage:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

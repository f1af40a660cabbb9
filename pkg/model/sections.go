package model

import (
	"encoding/json"
	"strings"
)

// CleanResponse strips common LLM response framing: markdown code fences
// and leading/trailing whitespace.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```yaml")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseSections extracts labeled sections from a completion.
//
// The primary format is line-labeled sections:
//
//	thought: the model's reasoning
//	state: chosen-target
//
// A label only counts when it is one of the requested fields, at the start
// of a line (optionally bolded), followed by a colon. Section content runs
// until the next label. When no labels are found at all, a JSON object in
// the response is tried as a fallback.
func ParseSections(text string, fields []string) map[string]string {
	cleaned := CleanResponse(text)
	out := make(map[string]string)

	current := ""
	var buf []string
	flush := func() {
		if current != "" {
			out[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(cleaned, "\n") {
		if field, rest, ok := matchLabel(line, fields); ok {
			flush()
			current = field
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()

	if len(out) > 0 {
		return out
	}
	return parseJSONFallback(cleaned, fields)
}

func matchLabel(line string, fields []string) (field, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "**")
	for _, f := range fields {
		prefix := f + ":"
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			rest = strings.TrimSpace(trimmed[len(prefix):])
			rest = strings.TrimPrefix(rest, "**")
			return f, strings.TrimSpace(rest), true
		}
	}
	return "", "", false
}

// parseJSONFallback tries to read the requested fields out of a JSON object
// embedded in the response.
func parseJSONFallback(text string, fields []string) map[string]string {
	out := make(map[string]string)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return out
	}
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			switch s := v.(type) {
			case string:
				out[f] = s
			default:
				raw, _ := json.Marshal(v)
				out[f] = string(raw)
			}
		}
	}
	return out
}

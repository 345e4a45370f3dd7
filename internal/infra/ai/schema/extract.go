package schema

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the JSON document out of a model response. A response
// that already is a JSON object is returned as is; otherwise a surrounding
// Markdown code fence and any prose around the outermost object are dropped.
// Text without an object is returned trimmed so validation reports it.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if isObject(s) {
		return s
	}

	// the closing fence is the last one: string values may quote fenced text
	if start := strings.Index(s, "```"); start >= 0 {
		body := s[start+3:]
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		if obj := outermostObject(body); isObject(obj) {
			return obj
		}
	}

	if obj := outermostObject(s); obj != "" {
		return obj
	}
	return s
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

func outermostObject(s string) string {
	open := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if open >= 0 && end > open {
		return s[open : end+1]
	}
	return ""
}

package postgres

import (
	"encoding/json"
	"strings"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// dashToEmpty undoes stringOrDash when reading back.
func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// jsonOrEmpty returns s when it is valid JSON, "{}" when blank, and wraps
// anything else as {"raw": s}.
func jsonOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	if !json.Valid([]byte(s)) {
		b, _ := json.Marshal(map[string]string{"raw": s})
		return string(b)
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

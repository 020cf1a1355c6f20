package template

import (
	"encoding/json"
	"strings"
	"unicode"
)

// jsonFilter implements the `json` filter: renders any value as compact
// JSON, used by recipes to embed artifact structures into prompts or
// generated file content.
func jsonFilter(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}

// snakecaseFilter implements the `snakecase` filter: converts
// "CamelCase" / "kebab-case" / "Title Case" strings to snake_case, used by
// recipes deriving file or variable names from free-form text.
func snakecaseFilter(value string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range value {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

package lesson

import (
	"regexp"
	"strings"
)

var scriptTag = regexp.MustCompile(`(?i)<\s*/?\s*script[^>]*>`)

// SanitizeMarkdown trims the body and removes <script> tags.
// Only the tags are removed; everything else is left for the site renderer.
func SanitizeMarkdown(body string) string {
	return scriptTag.ReplaceAllString(strings.TrimSpace(body), "")
}

// AppendBody joins a sanitized addition onto an existing body with a blank line.
func AppendBody(existing, addition string) string {
	existing = strings.TrimSpace(existing)
	cleaned := SanitizeMarkdown(addition)
	if existing == "" {
		return cleaned
	}
	return strings.TrimSpace(existing + "\n\n" + cleaned)
}

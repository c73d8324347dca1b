package utils

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup tags and entities from a text fragment and
// collapses the remaining whitespace. Review excerpts arrive as fragments,
// not documents, so a tag-level strip is sufficient.
func StripHTML(value string) string {
	stripped := tagPattern.ReplaceAllString(value, " ")
	stripped = html.UnescapeString(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// Truncate shortens value to at most max runes, appending an ellipsis when
// anything was cut. Truncation happens on a word boundary where possible.
func Truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}

	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

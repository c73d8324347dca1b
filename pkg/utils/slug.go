package utils

import "strings"

// Slugify lowercases value and collapses every non-alphanumeric run into a
// single dash. The result is stable for identical input.
func Slugify(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(lowered))
	lastDash := false
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			builder.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(builder.String(), "-")
}

// PermalinkSlug derives the public path segment for a clinic from its name,
// state abbreviation and postal code. Identical inputs always produce the
// same slug so re-imports of the same clinic never fork its identity.
// An unresolved state contributes the literal "xx" segment.
func PermalinkSlug(name, stateAbbr, postalCode string) string {
	abbr := strings.ToLower(strings.TrimSpace(stateAbbr))
	if abbr == "" {
		abbr = "xx"
	}

	parts := []string{Slugify(name), abbr}
	if zip := strings.TrimSpace(postalCode); zip != "" {
		parts = append(parts, Slugify(zip))
	}
	return strings.Join(parts, "-")
}

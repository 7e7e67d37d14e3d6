// Package sanitize strips markup from free text before it is stored.
package sanitize

import (
	"regexp"
	"strings"
)

// htmlTagRegex only matches tag shapes: a name must follow the opening bracket,
// so comparisons such as "< 50L" or "<3" are left alone.
var htmlTagRegex = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][a-zA-Z0-9-]*(\s[^<>]*)?/?\s*>`)

// StripHTML removes HTML tags and trims the result. Entities are kept as written.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(s, ""))
}

// Text is the sanitizer applied to names and notes.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr sanitizes an optional string. A value that sanitizes to "" becomes nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	return &result
}

// Package sanitize cleans text received from outside providers before it is
// stored or shown to operators.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxErrorLength caps persisted provider error messages.
const MaxErrorLength = 500

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer  = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'", "&nbsp;", " ")
)

// StripHTML removes HTML tags, decodes common entities and strips again to
// catch encoded tags.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Line strips HTML, collapses whitespace to single spaces and truncates to
// max runes. Vendor error pages end up in retry logs this way as one
// readable line. max <= 0 disables truncation.
func Line(s string, max int) string {
	result := whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
	if max <= 0 || utf8.RuneCountInString(result) <= max {
		return result
	}
	runes := []rune(result)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// ErrorMessage is Line applied to err with MaxErrorLength.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return Line(err.Error(), MaxErrorLength)
}

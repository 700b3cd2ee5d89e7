// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "NL"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	formatted, ok := ParseE164(input)
	if !ok {
		return strings.TrimSpace(input)
	}
	return formatted
}

// ParseE164 is NormalizeE164 for callers that must reject numbers which cannot be dialled.
func ParseE164(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", false
	}

	return phonenumbers.Format(number, phonenumbers.E164), true
}

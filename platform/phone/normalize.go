// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DigitsOnly strips formatting characters (a leading "+", spaces, dashes, dots
// and brackets) and converts non-ASCII digits, so "+91 98765-43210" becomes
// "919876543210". Input holding anything else, such as letters, is returned
// trimmed so validation reports it as-is.
func DigitsOnly(input string) string {
	trimmed := strings.TrimSpace(input)
	if !formattedNumber(trimmed) {
		return trimmed
	}
	digits := phonenumbers.NormalizeDigitsOnly(trimmed)
	if digits == "" {
		return trimmed
	}
	return digits
}

func formattedNumber(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	return true
}

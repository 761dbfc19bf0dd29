package leads

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

// MinNameLength is the minimum trimmed length of an accepted name.
const MinNameLength = 2

// ValidateEmail reports whether s looks like local@domain.tld.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// CleanPhone drops every character that is not a digit or '+'.
func CleanPhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone reports whether the cleaned number is an optional '+', a
// nonzero leading digit and at most 15 more digits.
func ValidatePhone(s string) bool {
	return phonePattern.MatchString(CleanPhone(s))
}

// ValidateName reports whether the trimmed name has at least MinNameLength characters.
func ValidateName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= MinNameLength
}

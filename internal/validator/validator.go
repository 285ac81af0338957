package validator

import (
	"regexp"
	"strings"
)

// S10: две буквы, девять цифр, две буквы (например AB123456789GB).
var identifierRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{9}[A-Z]{2}$`)

// Normalize trims surrounding whitespace and upper-cases the raw identifier.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Valid reports whether raw is a well-formed tracking identifier after
// normalization. It never fails: any non-match is simply false.
func Valid(raw string) bool {
	return identifierRe.MatchString(Normalize(raw))
}

package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims the input, drops control characters other than
// newline and tab, and caps the result at maxRunes characters.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)
	if maxRunes <= 0 {
		return cleaned
	}
	n := 0
	for i := range cleaned {
		if n == maxRunes {
			return strings.TrimRightFunc(cleaned[:i], unicode.IsSpace)
		}
		n++
	}
	return cleaned
}

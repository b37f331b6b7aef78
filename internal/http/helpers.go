package http

import (
	"strings"
	"unicode/utf8"
)

// maxTextRunes bounds a question's length.
const maxTextRunes = 500

// sanitizeInput trims whitespace, removes control characters except tab,
// newline and carriage return, and caps the length.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	if utf8.RuneCountInString(s) > maxTextRunes {
		s = string([]rune(s)[:maxTextRunes])
	}
	return s
}

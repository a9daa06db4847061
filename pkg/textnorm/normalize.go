// Package textnorm turns raw email text into the canonical form the vectorizer was fitted on.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// spaceClass lists every rune isSpace accepts, for use inside a regexp character class.
const spaceClass = `\t\n\v\f\r \x{1c}-\x{1f}\x{85}\x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}`

var urlPattern = regexp.MustCompile(`(?:http|www)[^` + spaceClass + `]+`)

// escapedNewline is a literal backslash followed by "n", as found in exported datasets.
const escapedNewline = `\n`

// Normalize lower-cases text, strips URLs and escaped newlines, removes every character
// outside [a-z0-9 .,!?] and collapses whitespace. The result is a fixed point:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	for {
		next := clean(text)
		if next == text {
			return next
		}
		text = next
	}
}

func clean(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, escapedNewline, " ")
	text = strings.Map(keepRune, text)
	return strings.Join(strings.FieldsFunc(text, isSpace), " ")
}

// keepRune drops runes outside the allowed alphabet.
func keepRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return r
	case r == '.', r == ',', r == '!', r == '?':
		return r
	case isSpace(r):
		return r
	}
	return -1
}

// isSpace matches Unicode white space plus the ASCII information separators,
// which the training pipeline also treated as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// WordCount returns the number of whitespace-delimited tokens in text.
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, isSpace))
}

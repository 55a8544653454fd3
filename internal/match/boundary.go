package match

import (
	"unicode"
	"unicode/utf8"
)

// NoRune stands for the start or end of text when classifying boundaries.
const NoRune rune = -1

// IsValidBoundary reports whether r may directly precede or follow a literal
// match. Letters, digits, '.', '-', '_' and square brackets continue an
// identifier: hostnames, file names and defanged IOCs such as evil[.]com.
func IsValidBoundary(r rune) bool {
	if r == NoRune {
		return true
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	switch r {
	case '.', '-', '_', '[', ']':
		return false
	}
	return true
}

// HasValidBoundaries reports whether text[start:end] is delimited by valid
// boundaries on both sides. Offsets are byte offsets into text.
func HasValidBoundaries(text string, start, end int) bool {
	return IsValidBoundary(runeBefore(text, start)) && IsValidBoundary(runeAfter(text, end))
}

func runeBefore(text string, pos int) rune {
	if pos <= 0 || pos > len(text) {
		return NoRune
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return r
}

func runeAfter(text string, pos int) rune {
	if pos < 0 || pos >= len(text) {
		return NoRune
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return r
}

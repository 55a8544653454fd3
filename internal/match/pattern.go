package match

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"intelscan/pkg/models"
)

// EscapeRegex escapes every regular expression metacharacter in s.
func EscapeRegex(s string) string {
	return regexp.QuoteMeta(s)
}

// Pattern is a compiled case-insensitive search for one literal.
//
// RE2 has no lookaround, so the lookbehind/lookahead anchors used for IPv4,
// MAC and parent MITRE IDs are checked on the surrounding bytes after the
// regex match.
type Pattern struct {
	literal  string
	kind     models.Kind
	parent   bool
	wordLeft bool
	re       *regexp.Regexp
}

// CompilePattern builds the search pattern for a candidate name.
func CompilePattern(name string) (*Pattern, error) {
	literal := strings.TrimSpace(name)
	if literal == "" {
		return nil, fmt.Errorf("empty pattern literal")
	}
	kind := Classify(literal)

	var b strings.Builder
	b.WriteString("(?i)")
	wordLeft := false
	switch kind {
	case models.KindIP, models.KindMAC:
		b.WriteString(EscapeRegex(literal))
	case models.KindMitreID:
		wordLeft = true
		b.WriteString(`\b`)
		b.WriteString(EscapeRegex(literal))
		b.WriteString(`\b`)
	default:
		first, _ := utf8.DecodeRuneInString(literal)
		last, _ := utf8.DecodeLastRuneInString(literal)
		if isASCIIWord(first) {
			wordLeft = true
			b.WriteString(`\b`)
		}
		b.WriteString(EscapeRegex(literal))
		if isASCIIWord(last) {
			b.WriteString(`\b`)
		}
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern for %q: %w", literal, err)
	}
	return &Pattern{
		literal:  literal,
		kind:     kind,
		parent:   kind == models.KindMitreID && IsParentMitreID(literal),
		wordLeft: wordLeft,
		re:       re,
	}, nil
}

// Literal returns the trimmed literal the pattern was built from.
func (p *Pattern) Literal() string {
	return p.literal
}

// Kind returns the literal's identifier family.
func (p *Pattern) Kind() models.Kind {
	return p.kind
}

// NeedsBoundaryCheck reports whether matches must also pass HasValidBoundaries.
func (p *Pattern) NeedsBoundaryCheck() bool {
	return p.kind.NeedsBoundaryCheck()
}

// String returns the underlying regular expression.
func (p *Pattern) String() string {
	return p.re.String()
}

// FindAll returns every occurrence of the literal in text that satisfies the
// family anchors, including occurrences that overlap each other. Generic
// matches are not yet boundary-checked.
func (p *Pattern) FindAll(text string) []models.CharRange {
	var out []models.CharRange
	for pos := 0; pos < len(text); {
		loc := p.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if p.leftEdgeOK(text, start) && p.anchored(text, start, end) {
			out = append(out, models.CharRange{Start: start, End: end})
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			size = 1
		}
		pos = start + size
	}
	return out
}

// leftEdgeOK re-checks the leading \b against the full text, since a search
// resumed mid-text treats the cut as a word boundary.
func (p *Pattern) leftEdgeOK(text string, start int) bool {
	if !p.wordLeft || start == 0 {
		return true
	}
	return !isASCIIWord(rune(text[start-1]))
}

func (p *Pattern) anchored(text string, start, end int) bool {
	switch p.kind {
	case models.KindIP:
		return !extendsLeft(text, start, isDigit, ".") && !extendsRight(text, end, isDigit, ".")
	case models.KindMAC:
		return !extendsLeft(text, start, isHex, ":-") && !extendsRight(text, end, isHex, ":-")
	case models.KindMitreID:
		if p.parent {
			return !extendsRight(text, end, isDigit, ".")
		}
		return true
	default:
		return true
	}
}

// extendsLeft reports whether the token continues before start, either with a
// unit byte or with a separator that is itself preceded by a unit byte.
func extendsLeft(text string, start int, unit func(byte) bool, seps string) bool {
	if start <= 0 {
		return false
	}
	prev := text[start-1]
	if unit(prev) {
		return true
	}
	return strings.IndexByte(seps, prev) >= 0 && start >= 2 && unit(text[start-2])
}

func extendsRight(text string, end int, unit func(byte) bool, seps string) bool {
	if end >= len(text) {
		return false
	}
	next := text[end]
	if unit(next) {
		return true
	}
	return strings.IndexByte(seps, next) >= 0 && end+1 < len(text) && unit(text[end+1])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isASCIIWord(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

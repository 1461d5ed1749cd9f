package scanner

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	literalPattern   = regexp.MustCompile(`^#?[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
	paragraphPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
	quotedPattern    = regexp.MustCompile(`^["'][^"']*["']$`)
	compPattern      = regexp.MustCompile(`comp-[0-9]`)
)

// IsValidLiteral reports whether id can name a data item or label.
func IsValidLiteral(id string) bool {
	return id != "" && literalPattern.MatchString(id)
}

func isParagraphName(id string) bool {
	return id != "" && paragraphPattern.MatchString(id)
}

// trimLiteral strips surrounding whitespace, leading "(" and trailing ")"
// runs, and a trailing period. Quotes are removed when trimQuotes is set.
func trimLiteral(literal string, trimQuotes bool) string {
	s := strings.TrimSpace(literal)
	if s == "" {
		return ""
	}
	s = strings.TrimLeft(s, "(")
	s = strings.TrimRight(s, ")")
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSpace(s)

	if trimQuotes && len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			s = s[1 : len(s)-1]
		}
	}
	return s
}

func isQuotedLiteral(literal string) bool {
	s := strings.TrimSpace(literal)
	if len(s) < 2 {
		return false
	}
	s = strings.TrimSuffix(s, ".")
	return quotedPattern.MatchString(s)
}

// isNumber accepts anything that parses as a finite or infinite number.
func isNumber(value string) bool {
	if value == "" {
		return false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f)
}

// hasLeadingInt reports whether value starts with an optionally signed digit.
func hasLeadingInt(value string) bool {
	s := value
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func containsIndex(literal string) bool {
	return strings.ContainsAny(literal, "()[]")
}

type subscriptPart struct {
	offset int
	name   string
}

// splitSubscripts splits "a(b)" into its names and their byte offsets.
func splitSubscripts(literal string) []subscriptPart {
	var parts []subscriptPart
	start := 0
	var b strings.Builder
	flush := func(pos int) {
		if b.Len() != 0 {
			parts = append(parts, subscriptPart{offset: start, name: b.String()})
			b.Reset()
			start = pos + 1
		}
	}
	for pos := 0; pos < len(literal); pos++ {
		switch c := literal[pos]; c {
		case '(', '[', ')', ']':
			flush(pos)
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() != 0 {
		parts = append(parts, subscriptPart{offset: start, name: b.String()})
	}
	return parts
}

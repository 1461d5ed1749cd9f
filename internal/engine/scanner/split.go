package scanner

import (
	"regexp"
	"strings"
)

// wordSeparators split off as single-character tokens.
const wordSeparators = `~!@$%^&*()=+[{]}\|;,<>/?`

var splitPattern = regexp.MustCompile(
	`"[^"]*"|'[^']*'|==|::|[` + regexp.QuoteMeta(wordSeparators) + `]|[^\s` + regexp.QuoteMeta(wordSeparators) + `]+`,
)

// SplitLine breaks a line into tokens. Quoted literals stay whole, "==" and
// "::" are atomic, each separator is its own token and everything else is a
// word running to the next separator or whitespace.
func SplitLine(line string) []string {
	matches := splitPattern.FindAllString(line, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// StreamToken is a positioned token of a single line.
type StreamToken struct {
	Text        string
	Lower       string
	EndsWithDot bool
	Line        int
	Column      int
}

// StreamTokens tokenizes line and locates each token's column by searching
// forward from the end of the previous token.
func StreamTokens(line string, lineNumber int) []StreamToken {
	parts := SplitLine(line)
	out := make([]StreamToken, 0, len(parts))
	col := 0
	for _, p := range parts {
		if idx := strings.Index(line[col:], p); idx >= 0 {
			col += idx
		}
		out = append(out, StreamToken{
			Text:        p,
			Lower:       strings.ToLower(p),
			EndsWithDot: strings.HasSuffix(p, "."),
			Line:        lineNumber,
			Column:      col,
		})
		col += len(p)
		if col > len(line) {
			col = len(line)
		}
	}
	return out
}

// tokenStream is a cursor over the tokens of one line that also remembers
// the token before the cursor, which may come from the previous line.
type tokenStream struct {
	current      string
	currentLower string
	currentCol   int
	currentLine  int
	endsWithDot  bool

	prev      string
	prevLower string
	prevLine  int
	prevCol   int

	index  int
	tokens []StreamToken
}

func newTokenStream(line string, lineNumber int, previous *tokenStream) *tokenStream {
	ts := &tokenStream{currentLine: lineNumber}
	ts.tokens = StreamTokens(line, lineNumber)
	ts.setup()

	if previous != nil && len(previous.tokens) > 0 {
		last := previous.tokens[len(previous.tokens)-1]
		ts.prev = last.Text
		ts.prevLower = last.Lower
		ts.prevCol = last.Column
		ts.prevLine = last.Line
	}
	return ts
}

func (ts *tokenStream) setup() {
	ts.prev = ts.current
	ts.prevLower = ts.currentLower
	ts.prevLine = ts.currentLine
	ts.prevCol = ts.currentCol

	if ts.index < len(ts.tokens) {
		st := ts.tokens[ts.index]
		ts.current = st.Text
		ts.currentLower = st.Lower
		ts.endsWithDot = st.EndsWithDot
		ts.currentCol = st.Column
		ts.currentLine = st.Line
		return
	}
	ts.current, ts.currentLower = "", ""
	ts.endsWithDot = false
	ts.currentCol = 0
	ts.currentLine = 0
}

// next advances the cursor and reports true once the stream is exhausted.
func (ts *tokenStream) next() bool {
	if ts.index+1 > len(ts.tokens) {
		return true
	}
	ts.index++
	ts.setup()
	return false
}

// end makes the next call to next report exhaustion.
func (ts *tokenStream) end() {
	ts.index = len(ts.tokens)
}

func (ts *tokenStream) peek(offset int) StreamToken {
	if i := ts.index + offset; i >= 0 && i < len(ts.tokens) {
		return ts.tokens[i]
	}
	return StreamToken{}
}

func (ts *tokenStream) isTokenPresent(word string) bool {
	lower := strings.ToLower(word)
	for _, t := range ts.tokens {
		if t.Lower == lower || t.Lower == lower+"." {
			return true
		}
	}
	return false
}

// compoundItems joins "&" continued literals that follow the cursor.
func (ts *tokenStream) compoundItems(start string) string {
	if ts.endsWithDot || ts.index+1 >= len(ts.tokens) {
		return start
	}
	comp := start
	addNext := false
	for _, st := range ts.tokens[ts.index+1:] {
		trimmed := trimLiteral(st.Text, false)
		if st.EndsWithDot {
			return comp + " " + trimmed
		}
		switch {
		case addNext:
			comp += " " + trimmed
			addNext = false
		case st.Text == "&":
			comp += " " + trimmed
			addNext = true
		default:
			return comp
		}
	}
	return comp
}

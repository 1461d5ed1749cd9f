package scanner

import (
	"log/slog"
	"strings"
)

// tokenCtx is the view of one token shared by every rule.
type tokenCtx struct {
	s     *Scanner
	state *ParseState
	ts    *tokenStream

	line       string
	lineNumber int

	current      string
	currentLower string
	currentCol   int

	// prev and prevLower have literal decoration trimmed. prevRawLower is the
	// previous token as it appeared, lower-cased.
	prev            string
	prevLower       string
	prevRawLower    string
	prevCol         int
	prevPlusCurrent string
}

func (c *tokenCtx) pos() linePos {
	return linePos{text: c.line, line: c.lineNumber, col: c.currentCol}
}

// rule recognises one construct. apply returns true when it consumed the
// token; later rules then do not see it.
type rule struct {
	name  string
	apply func(c *tokenCtx) bool
}

// rules run in this order for every token. The order is significant. The
// list is built in init because the rules reach processTokens through
// nested copybook scans.
var rules []rule

func init() {
	rules = []rule{
		{"using", (*tokenCtx).pickUpUsing},
		{"skip-to-dot", (*tokenCtx).skipToDot},
		{"exec", (*tokenCtx).execBlock},
		{"region", (*tokenCtx).region},
		{"end-declaratives", (*tokenCtx).endDeclaratives},
		{"replace", (*tokenCtx).replaceStart},
		{"section", (*tokenCtx).section},
		{"division", (*tokenCtx).division},
		{"entry", (*tokenCtx).entry},
		{"program-id", (*tokenCtx).programID},
		{"class-id", (*tokenCtx).classID},
		{"end-class", (*tokenCtx).endClass},
		{"type-id", (*tokenCtx).typeID},
		{"function-id", (*tokenCtx).functionID},
		{"method-id", (*tokenCtx).methodID},
		{"end-method", (*tokenCtx).endMethod},
		{"end-program", (*tokenCtx).endProgram},
		{"end-function", (*tokenCtx).endFunction},
		{"declaratives", (*tokenCtx).declaratives},
		{"copy", (*tokenCtx).copyStart},
		{"paragraph", (*tokenCtx).paragraph},
		{"file-sections", (*tokenCtx).fileSections},
		{"data-item", (*tokenCtx).dataItem},
		{"references", (*tokenCtx).references},
	}
}

// RuleNames lists the rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// processTokens runs every token of ts through the rules and returns the
// stream the next line continues from.
func (s *Scanner) processTokens(lineNumber int, ts *tokenStream, line string, replaceOn bool) *tokenStream {
	for {
		if out, done := s.processToken(lineNumber, ts, line, replaceOn); done {
			return out
		}
		if ts.next() {
			return ts
		}
	}
}

func (s *Scanner) processToken(lineNumber int, ts *tokenStream, line string, replaceOn bool) (out *tokenStream, done bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scanner token error", "path", s.Filename, "line", lineNumber, "token", ts.current, "error", r)
			out, done = nil, false
		}
	}()

	state := s.state()
	raw := ts.current
	if raw == "" {
		return nil, false
	}

	if state.SkipToEndLsIgnore {
		s.refs.IgnoreLSRanges = append(s.refs.IgnoreLSRanges, SourceRange{
			FileID:    s.FileID,
			Line:      ts.currentLine,
			Column:    s.sourceColumn(ts.currentLine, ts.currentCol),
			EndLine:   ts.currentLine,
			EndColumn: s.sourceColumn(ts.currentLine, ts.currentCol+len(raw)),
			Style:     StyleIgnoreLS,
		})
		return nil, false
	}

	if state.SkipNextToken {
		state.SkipNextToken = false
		// "PIC X." ends the statement on the skipped token.
		if !state.SkipToDot || !strings.HasSuffix(raw, ".") {
			return nil, false
		}
		state.SkipToDot = false
	}

	if replaceOn {
		if next, ok := s.applyReplace(lineNumber, ts, line); ok {
			return next, true
		}
	}

	// SET x TO ENTRY "name"
	if ts.prevLower == "to" && ts.currentLower == "entry" {
		ts.next()
		return nil, false
	}

	cur := raw
	state.PrevEndsWithDot = state.EndsWithDot
	switch {
	case strings.HasSuffix(cur, ","):
		cur = cur[:len(cur)-1]
		state.EndsWithDot = false
	case ts.endsWithDot:
		cur = cur[:len(cur)-1]
		state.EndsWithDot = true
	default:
		state.EndsWithDot = false
	}

	prevRawLower := strings.TrimSpace(ts.prevLower)
	c := &tokenCtx{
		s:               s,
		state:           state,
		ts:              ts,
		line:            line,
		lineNumber:      lineNumber,
		current:         cur,
		currentLower:    strings.ToLower(cur),
		currentCol:      ts.currentCol,
		prev:            trimLiteral(ts.prev, false),
		prevLower:       trimLiteral(prevRawLower, false),
		prevRawLower:    prevRawLower,
		prevCol:         ts.prevCol,
		prevPlusCurrent: ts.prev + " " + cur,
	}
	for _, r := range rules {
		if r.apply(c) {
			break
		}
	}
	return nil, false
}

// columnRemap maps columns of rewritten text on one line back to the line
// as written.
type columnRemap struct {
	line    int
	base    int
	offsets []int
}

// sourceColumn translates col on line to a column of the original line when
// rewritten text is being scanned.
func (s *Scanner) sourceColumn(line, col int) int {
	r := s.remap
	if r == nil || line != r.line || col < 0 {
		return col
	}
	col = min(col, len(r.offsets)-1)
	return r.base + r.offsets[col]
}

// applyReplace rewrites the rest of the line with the active REPLACE map and
// scans the result in place of the original tokens. The rewrite is recorded
// on the source but the next scan starts again from the raw line.
func (s *Scanner) applyReplace(lineNumber int, ts *tokenStream, line string) (*tokenStream, bool) {
	state := s.state()
	col := min(ts.currentCol, len(line))
	right := line[col:]
	replaced, offsets := state.ReplaceMap.applyMapped(right)
	if replaced == right {
		return nil, false
	}

	s.src.SetUpdatedLine(lineNumber, line[:col]+replaced)
	before := len(s.refs.TokensInOrder)
	prev := newTokenStream(ts.prev, ts.prevLine, nil)

	saved := s.remap
	s.remap = &columnRemap{line: lineNumber, base: col, offsets: offsets}
	out := s.processTokens(lineNumber, newTokenStream(replaced, lineNumber, prev), replaced, false)
	s.remap = saved

	if before > len(s.refs.TokensInOrder) {
		return out, true
	}
	// Tokens made from replaced text point back at the original token.
	for _, id := range s.refs.TokensInOrder[before:] {
		if t := s.Token(id); t != nil {
			t.RangeStartColumn = ts.currentCol
			t.RangeEndColumn = ts.currentCol + len(ts.current)
		}
	}
	return out, true
}

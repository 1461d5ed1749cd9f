package scanner

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// headerCounts is what the first lines of a document say about it.
type headerCounts struct {
	sections   int
	divisions  int
	procedure  int
	storage    int
	numbers    int
	leaveEarly bool
}

var headerStorageSections = newWordSet("working-storage file linkage screen input-output")

// preScan looks at the first lines to decide whether the document is a
// program, a copybook of data items, a copybook of procedure code, or not
// COBOL at all. It returns false when the scan had to be abandoned.
func (s *Scanner) preScan() bool {
	s.reader.quiet = true
	defer func() { s.reader.quiet = false }()

	var h headerCounts
	var prev *tokenStream
	maxLines := s.settings.PreScanLineLimit
	lineCount := s.src.LineCount()

	for l := 0; l < maxLines+s.reader.commentCount; l++ {
		if l >= lineCount {
			break
		}
		processed, _ := s.reader.line(l)
		line := strings.TrimRight(processed, " \t\r")
		if len(line) > s.settings.MaxLineLength {
			s.abort("line_length", l, fmt.Sprintf("Aborted scanning %s max line length exceeded", s.Filename))
			return false
		}
		if line == "" {
			maxLines++
			continue
		}

		ts := newTokenStream(line, l, prev)
		if hasLeadingInt(ts.currentLower) {
			h.numbers++
		}
		s.countHeaderTokens(ts, &h)
		if h.leaveEarly {
			break
		}
		prev = ts
	}

	state := s.state()
	if h.sections == 0 && h.divisions == 0 {
		switch {
		case h.procedure > h.storage && h.procedure != 0:
			div := s.fakeDivision(StyleDivision, "Procedure Division (CopyBook)")
			state.CurrentDivision = div.ID
			state.ProcedureDivision = div.ID
			state.InProcedureDivision = true
			state.EndsWithDot = true
			state.PrevEndsWithDot = true
			state.RestorePrevState = true
			s.SourceIsCopybook = true
			s.ImplicitProgramID = ""
			s.LooksLikeCOBOL = true
		case h.storage != 0 && h.numbers != 0:
			div := s.fakeDivision(StyleDivision, "Data Division (CopyBook)")
			state.CurrentDivision = div.ID
			state.PickFields = true
			s.SourceIsCopybook = true
			s.ImplicitProgramID = ""
			s.LooksLikeCOBOL = true
		}
	}

	switch {
	case h.divisions != 0 || h.leaveEarly:
		s.LooksLikeCOBOL = true
	case s.reader.commentCount != 0:
		s.LooksLikeCOBOL = true
	case filepath.Ext(s.Filename) != "":
		s.LooksLikeCOBOL = true
	}
	if !s.LooksLikeCOBOL {
		slog.Debug("source does not look like COBOL", "path", s.Filename)
	}
	return true
}

func (s *Scanner) countHeaderTokens(ts *tokenStream, h *headerCounts) {
	for {
		cur := strings.TrimSuffix(ts.currentLower, ".")
		prev := strings.TrimSuffix(ts.prevLower, ".")
		switch cur {
		case "":
		case "section":
			if headerStorageSections.has(prev) {
				h.sections++
				h.leaveEarly = true
			} else if !procedureKeywords.has(prev) {
				h.procedure++
			}
		case "program-id":
			h.divisions++
			h.leaveEarly = true
		case "division":
			switch prev {
			case "identification":
				h.divisions++
				h.leaveEarly = true
			case "procedure":
				h.procedure++
				h.leaveEarly = true
			}
		default:
			if procedureKeywords.has(cur) {
				h.procedure++
			}
			if storageKeywords.has(cur) {
				h.storage++
			}
		}
		if h.leaveEarly || ts.next() {
			return
		}
	}
}

// fakeDivision creates a hidden division for sources that have none.
func (s *Scanner) fakeDivision(style Style, description string) *Token {
	state := s.state()
	saved := state.IgnoreInOutlineView
	state.IgnoreInOutlineView = true
	tok := s.newToken(style, 0, description, 0, description, description, NoToken, "", true)
	state.IgnoreInOutlineView = saved
	return tok
}

package scanner

import (
	"fmt"
	"regexp"
	"strings"
)

// processComment handles a comment reported by the line reader: linter
// markers, source-dependency hints and the ignore-source brackets.
func (s *Scanner) processComment(cm Comment) {
	state := s.state()
	state.CurrentLineIsComment = true

	text := cm.Text
	if i := strings.Index(text, "*>"); i != -1 {
		if code := strings.TrimRight(text[:i], " \t"); code != "" {
			// inline comment after code
			state.CurrentLineIsComment = false
			text = text[i:]
		}
	}

	if i := strings.Index(text, lintMarker); i != -1 {
		s.processLintComment(text[i+len(lintMarker):])
	}
	if s.settings.ScanCommentsForHints {
		s.processHintComment(text, cm.Line)
	}
	s.processIgnoreComment(text, cm)
}

// processLintComment handles "cobol-lint not-referenced name...".
func (s *Scanner) processLintComment(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case lintNotReferenced, lintLegacyNotRef:
		for _, name := range fields[1:] {
			s.refs.IgnoreUnusedSymbol[strings.ToLower(name)] = name
		}
	}
}

// processHintComment scans the copybooks named after the hint token so their
// definitions are available for references. A "/re/" argument filters the
// lines of the copybooks that follow it.
func (s *Scanner) processHintComment(text string, line int) {
	token := s.settings.ScanCommentCopybookToken
	i := strings.Index(text, token)
	if token == "" || i == -1 {
		return
	}

	var filter *regexp.Regexp
	for _, arg := range strings.Fields(text[i+len(token):]) {
		if len(arg) >= 2 && strings.HasPrefix(arg, "/") && strings.HasSuffix(arg, "/") {
			re, err := regexp.Compile("(?i)" + arg[1:len(arg)-1])
			if err != nil {
				s.warn(line, CodeCommentHint, err.Error())
				continue
			}
			filter = re
			continue
		}

		fileName := s.resolve(arg, "")
		if fileName == "" {
			if !s.settings.LinterIgnoreMissingCopybook {
				s.warn(line, CodeCommentHint,
					fmt.Sprintf("%s: Unable to locate copybook %s specified in embedded comment", token, arg))
			}
			continue
		}
		if _, seen := s.refs.CopyBooksUsed[fileName]; seen {
			continue
		}
		s.refs.CopyBooksUsed[fileName] = []CopybookUse{{Token: NoToken}}

		src, err := s.opts.Open(fileName, filter)
		if err != nil {
			if !s.settings.LinterIgnoreMissingCopybook {
				s.warn(line, CodeCommentHint,
					fmt.Sprintf("%s: Unable to process inline copybook %s specified in embedded comment", token, arg))
			}
			continue
		}
		s.scanInline(src, s.state().Copybook.Saved01Group, true)
	}
}

// processIgnoreComment opens and closes the regions the scanner skips.
func (s *Scanner) processIgnoreComment(text string, cm Comment) {
	state := s.state()
	lower := strings.ToLower(text)

	if state.SkipToEndLsIgnore {
		i := strings.Index(lower, lsIgnoreEnd)
		if i == -1 {
			return
		}
		state.SkipToEndLsIgnore = false
		if t := s.Token(s.lastLSIgnore); t != nil {
			t.RangeEndLine = cm.Line
			t.RangeEndColumn = i + len(lsIgnoreEnd)
		}
		s.lastLSIgnore = NoToken
		return
	}

	if i := strings.Index(lower, lsIgnoreStart); i != -1 {
		state.SkipToEndLsIgnore = true
		tok := s.newToken(StyleIgnoreLS, cm.Line, lower, i, lsIgnoreStart, "Ignore Source", NoToken, "", false)
		tok.RangeStartColumn = cm.StartPos
		s.lastLSIgnore = tok.ID
	}
}

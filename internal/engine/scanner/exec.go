package scanner

import "strings"

// parseExecStatement records the cursors declared in an EXEC SQL block.
func (s *Scanner) parseExecStatement(exec *Token, text string) {
	if !strings.EqualFold(s.currentExecName, "sql") {
		return
	}
	line := exec.StartLine
	prevDeclare := false
	for _, l := range strings.Split(text, "\n") {
		for _, word := range strings.Fields(l) {
			switch {
			case prevDeclare:
				s.refs.ExecSQLDeclare[strings.ToLower(word)] = &SQLDeclare{Token: exec.ID, Line: line}
				prevDeclare = false
			case strings.EqualFold(word, "declare"):
				prevDeclare = true
			}
		}
		line++
	}
}

// sqlDeclareReferences finds the usages of cursor name inside one EXEC block.
func (s *Scanner) sqlDeclareReferences(name string, exec *Token, decl *SQLDeclare) {
	if exec == nil {
		return
	}
	src := s.refs.source(exec.FileID)
	if src == nil {
		return
	}
	text := Text(src, exec.RangeStartLine, exec.RangeStartColumn, exec.RangeEndLine, exec.RangeEndColumn)
	line := exec.RangeStartLine
	for i, l := range strings.Split(text, "\n") {
		offset := 0
		if i == 0 {
			offset = exec.RangeStartColumn
		}
		lowerLine := strings.ToLower(l)
		for _, word := range strings.Fields(l) {
			word = strings.TrimRight(word, ",;")
			if strings.ToLower(word) != name {
				continue
			}
			col := strings.Index(lowerLine, name) + offset
			decl.References = append(decl.References, SourceRange{
				FileID:    exec.FileID,
				Line:      line,
				Column:    col,
				EndLine:   line,
				EndColumn: col + len(word),
				Style:     StyleSQLCursor,
			})
		}
		line++
	}
}

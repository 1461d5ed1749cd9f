package scanner

import "strings"

// references records usages of data items, sections and paragraphs inside
// the procedure division. Names not yet defined go to UnknownReferences and
// are resolved when the scan finishes.
func (c *tokenCtx) references() bool {
	s, state := c.s, c.state
	if !state.InProcedureDivision {
		return true
	}
	lower := c.currentLower
	if isQuotedLiteral(lower) || isNumber(lower) || s.isKeyword(lower) {
		return true
	}
	if !containsIndex(lower) {
		c.plainReference()
		return true
	}

	refs := s.refs
	for _, part := range splitSubscripts(lower) {
		name := part.name
		if isNumber(name) || s.isKeyword(name) || !IsValidLiteral(name) {
			continue
		}
		col := c.currentCol + part.offset
		vars, ok := refs.ConstantsOrVariables[name]
		if !ok {
			s.addVariableReference(refs.UnknownReferences, name, c.lineNumber, col, StyleUnknown)
			continue
		}
		if style, add := s.visibleVariableStyle(vars); add {
			s.addVariableReference(refs.ConstantsOrVariablesReferences, name, c.lineNumber, col, style)
		}
	}
	return true
}

func (c *tokenCtx) plainReference() {
	s, state, refs := c.s, c.state, c.s.refs
	lower := c.currentLower

	switch c.prevLower {
	case "perform", "to", "goto", "thru", "through", "procedure":
		style, target := StyleUnknown, refs.UnknownReferences
		switch {
		case s.isVisibleSection(lower):
			style, target = StyleSection, refs.TargetReferences
		case s.isVisibleParagraph(lower):
			style, target = StyleParagraph, refs.TargetReferences
		default:
			// definitions are keyed lower-case, so only a lower-case usage
			// resolves here; the rest is settled when the scan finishes
			if _, ok := refs.ConstantsOrVariables[c.current]; ok {
				style, target = StyleVariable, refs.ConstantsOrVariablesReferences
			}
		}
		s.addTargetReference(target, c.current, c.lineNumber, c.currentCol, style, c.prevLower)
		return
	}

	if vars, ok := refs.ConstantsOrVariables[lower]; ok {
		style := StyleVariable
		for _, v := range vars {
			style = v.Style
		}
		s.addVariableReference(refs.ConstantsOrVariablesReferences, lower, c.lineNumber, c.currentCol, style)
		return
	}

	if lower == "" || !isParagraphName(lower) {
		return
	}
	switch {
	case s.isVisibleSection(lower):
		s.addTargetReference(refs.TargetReferences, c.current, c.lineNumber, c.currentCol, StyleSection, "")
	case s.isVisibleParagraph(lower):
		s.addTargetReference(refs.TargetReferences, c.current, c.lineNumber, c.currentCol, StyleParagraph, "")
	case !state.EndsWithDot && !strings.HasPrefix(c.ts.peek(1).Lower, "section"):
		s.addTargetReference(refs.UnknownReferences, c.current, c.lineNumber, c.currentCol, StyleUnknown, "")
	}
}

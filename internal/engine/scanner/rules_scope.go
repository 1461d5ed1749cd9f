package scanner

import (
	"fmt"
	"strings"
)

var (
	impliedDataSections = newWordSet("file working-storage local-storage screen linkage")
	storageSections     = newWordSet("working-storage linkage local-storage file-control file screen")
)

// endOfWord returns the column after the first occurrence of lower in line.
func endOfWord(line, lower string) int {
	return strings.Index(strings.ToLower(line), lower) + len(lower)
}

// execBlock tracks EXEC ... END-EXEC blocks.
func (c *tokenCtx) execBlock() bool {
	s, state := c.s, c.state
	if c.currentLower == "exec" {
		s.currentExecName = c.ts.peek(1).Text
		s.currentExecVerb = c.ts.peek(2).Text
		desc := fmt.Sprintf("EXEC %s %s", s.currentExecName, s.currentExecVerb)
		tok := s.newToken(StyleExec, c.lineNumber, c.line, 0, c.current, desc, state.CurrentDivision, "", false)
		state.CurrentExec = tok.ID
		c.ts.next()
		return true
	}

	exec := s.Token(state.CurrentExec)
	if exec != nil && s.currentExecVerb == "" {
		s.currentExecVerb = c.current
		exec.Description = fmt.Sprintf("EXEC %s %s", s.currentExecName, s.currentExecVerb)
	}

	if c.currentLower == "end-exec" {
		if exec != nil {
			exec.RangeEndLine = c.ts.currentLine
			exec.RangeEndColumn = c.currentCol + len(c.ts.current)
			s.execTokensInOrder = append(s.execTokensInOrder, exec.ID)
			if s.settings.EnableExecSQLCursors {
				text := Text(s.src, exec.RangeStartLine, exec.RangeStartColumn, exec.RangeEndLine, exec.RangeEndColumn)
				s.parseExecStatement(exec, text)
			}
		}
		s.currentExecName = ""
		s.currentExecVerb = ""
		state.CurrentExec = NoToken
		state.PrevEndsWithDot = state.EndsWithDot
		state.EndsWithDot = true
		c.ts.endsWithDot = true
		return true
	}

	if exec == nil || s.currentExecName == "" {
		return false
	}

	if c.currentLower == "include" && strings.EqualFold(s.currentExecName, "sql") {
		s.sqlInclude(c)
		return true
	}

	if vars, ok := s.refs.ConstantsOrVariables[c.currentLower]; ok {
		if style, add := s.visibleVariableStyle(vars); add {
			s.addVariableReference(s.refs.ConstantsOrVariablesReferences, c.currentLower, c.lineNumber, c.currentCol, style)
		}
	}
	return true
}

// region handles $REGION and $END-REGION markers.
func (c *tokenCtx) region() bool {
	s := c.s
	if c.prev != "$" {
		return false
	}
	switch "$" + c.currentLower {
	case regionStart:
		rest := c.line[min(c.currentCol, len(c.line)):]
		name := c.prev + trimLiteral(c.current, false)
		tok := s.newToken(StyleRegion, c.lineNumber, c.line, c.prevCol, name, rest, c.state.CurrentDivision, "", false)
		s.activeRegions = append(s.activeRegions, tok.ID)
		c.ts.end()
		return true
	case regionEnd:
		n := len(s.activeRegions)
		if n == 0 {
			return false
		}
		id := s.activeRegions[n-1]
		s.activeRegions = s.activeRegions[:n-1]
		if t := s.Token(id); t != nil {
			t.RangeEndLine = c.lineNumber
			t.RangeEndColumn = endOfWord(c.line, c.currentLower)
			s.Regions = append(s.Regions, id)
		}
	}
	return false
}

func (c *tokenCtx) endDeclaratives() bool {
	s, state := c.s, c.state
	if state.Declaratives == NoToken || c.prevLower != "end" || c.currentLower != "declaratives" {
		return false
	}
	if d := s.Token(state.Declaratives); d != nil {
		d.RangeEndLine = c.lineNumber
		d.RangeEndColumn = strings.Index(c.line, c.current)
	}
	state.InDeclaratives = false
	tok := s.newToken(StyleEndDeclaratives, c.lineNumber, c.line, c.currentCol, c.current, c.current, state.CurrentDivision, "", false)
	state.Declaratives = tok.ID
	return true
}

func (c *tokenCtx) declaratives() bool {
	if c.prevLower == "end" || c.currentLower != "declaratives" {
		return false
	}
	state := c.state
	tok := c.s.newToken(StyleDeclaratives, c.lineNumber, c.line, c.currentCol, c.current, c.current, state.CurrentDivision, "", false)
	state.Declaratives = tok.ID
	state.InDeclaratives = true
	return true
}

func (c *tokenCtx) replaceStart() bool {
	state := c.state
	if !state.replaceEnabled || c.currentLower != "replace" {
		return false
	}
	state.InReplace = true
	state.SkipToDot = true
	state.replaceCapture = replacingCapture{}
	return true
}

func (c *tokenCtx) copyStart() bool {
	if c.currentLower != "copy" {
		return false
	}
	state := c.state
	state.Copybook = newCopybookInfo(state.Current01Group, state.Copybook.depths)
	state.Copybook.Verb = c.current
	state.Current01Group = NoToken
	state.InCopy = true
	state.InCopyStartColumn = c.currentCol
	state.SkipToDot = true
	return true
}

func (c *tokenCtx) section() bool {
	s, state := c.s, c.state
	if state.CurrentClass != NoToken || c.prev == "" || c.currentLower != "section" || c.prevLower == "exit" {
		return false
	}
	if c.prevLower == "declare" {
		return true
	}

	// storage sections without a DATA DIVISION header
	if state.CurrentDivision == NoToken && impliedDataSections.has(c.prevLower) {
		if s.ImplicitProgramID != "" {
			id := trimLiteral(s.ImplicitProgramID, true)
			prog := s.newToken(StyleProgramID, c.lineNumber, "program-id. "+s.ImplicitProgramID, 0, id, c.prevPlusCurrent, state.CurrentDivision, "", true)
			prog.IgnoreInOutlineView = true
			state.Programs = append(state.Programs, prog.ID)
			s.ImplicitProgramID = ""
		}
		state.CurrentSection = NoToken
		state.CurrentParagraph = NoToken
		div := s.newToken(StyleDivision, c.lineNumber, "Data Division", 0, "Data", "Data Division (Optional)", state.CurrentDivision, "", false)
		div.IgnoreInOutlineView = true
		state.CurrentDivision = div.ID
	}

	if storageSections.has(c.prevLower) {
		state.PickFields = true
		state.InProcedureDivision = false
	}

	state.CurrentParagraph = NoToken
	sec := s.newToken(StyleSection, c.lineNumber, c.line, c.prevCol, c.prev, c.prevPlusCurrent, state.CurrentDivision, "", false)
	state.CurrentSection = sec.ID
	s.refs.Sections[c.prevLower] = sec.ID
	state.Current01Group = NoToken
	state.CurrentLevel = NoToken
	return true
}

func (c *tokenCtx) division() bool {
	s, state := c.s, c.state
	if !state.CaptureDivisions || c.prevLower == "" || c.currentLower != "division" {
		return false
	}

	div := s.newToken(StyleDivision, c.lineNumber, c.line, 0, c.prev, c.prevPlusCurrent, NoToken, "", false)
	state.CurrentDivision = div.ID
	if !s.IsTopLevel() {
		state.RestorePrevState = false
	}

	if c.prevLower == "procedure" {
		state.InProcedureDivision = true
		state.PickFields = false
		state.ProcedureDivision = div.ID

		// implicit paragraph covering the code before the first label
		name := c.prev
		if s.implicitCount != 0 {
			name = fmt.Sprintf("%s-%d", c.prev, s.implicitCount)
		}
		lower := strings.ToLower(name)
		para := s.newToken(StyleParagraph, c.lineNumber, c.line, 0, lower, c.prevPlusCurrent, div.ID, "", true)
		para.IgnoreInOutlineView = true
		s.refs.Paragraphs[lower] = para.ID
		s.refs.IgnoreUnusedSymbol[lower] = lower

		state.CurrentParagraph = para.ID
		state.CurrentSection = NoToken
		state.Current01Group = NoToken
		state.CurrentLevel = NoToken
		if !state.EndsWithDot {
			state.PickUpUsing = true
		}
		s.implicitCount++
	}
	return true
}

func (c *tokenCtx) entry() bool {
	s, state := c.s, c.state
	if c.prevRawLower != "entry" {
		return false
	}
	statement := c.prevPlusCurrent
	trimmed := trimLiteral(c.current, true)
	if c.ts.peek(1).Text == "&" {
		statement = c.prev + " " + c.ts.compoundItems(trimmed)
	}
	tok := s.newToken(StyleEntryPoint, c.lineNumber, c.line, c.currentCol, trimmed, statement, state.CurrentDivision, "", false)

	state.EntryPointCount++
	state.Parameters = nil
	state.CurrentProgramTarget = &CallTarget{OriginalToken: c.current, Token: tok.ID, IsEntryPoint: true}
	s.CallTargets[trimmed] = state.CurrentProgramTarget
	state.PickUpUsing = true
	return true
}

func (c *tokenCtx) programID() bool {
	s, state := c.s, c.state
	if c.prevLower != "program-id" {
		return false
	}
	trimmed := trimLiteral(c.current, true)
	tok := s.newToken(StyleProgramID, c.lineNumber, c.line, c.prevCol, trimmed, c.prevPlusCurrent, state.CurrentDivision, "", false)
	tok.RangeStartColumn = c.prevCol
	state.Programs = append(state.Programs, tok.ID)
	if d := s.Token(state.CurrentDivision); d != nil {
		d.RangeEndLine = tok.EndLine
		d.RangeEndColumn = tok.EndColumn
	}
	if !strings.Contains(trimmed, " ") && !c.ts.isTokenPresent("external") {
		state.Parameters = nil
		state.CurrentProgramTarget = &CallTarget{OriginalToken: c.current, Token: tok.ID}
		s.CallTargets[trimmed] = state.CurrentProgramTarget
		s.ProgramID = trimmed
	}
	s.ImplicitProgramID = ""
	return true
}

func (c *tokenCtx) classID() bool {
	s, state := c.s, c.state
	if c.prevLower != "class-id" {
		return false
	}
	trimmed := trimLiteral(c.current, true)
	tok := s.newToken(StyleClassID, c.lineNumber, c.line, c.currentCol, trimmed, c.prevPlusCurrent, state.CurrentDivision, "", false)
	state.CurrentClass = tok.ID
	state.CaptureDivisions = false
	state.CurrentMethod = NoToken
	state.PickFields = true
	s.Classes[trimmed] = tok.ID
	return true
}

func (c *tokenCtx) endClass() bool {
	s, state := c.s, c.state
	if state.CurrentClass == NoToken || c.prevLower != "end" {
		return false
	}
	switch c.currentLower {
	case "class", "enum", "valuetype", "interface":
	default:
		return false
	}
	if cls := s.Token(state.CurrentClass); cls != nil {
		cls.RangeEndLine = c.lineNumber
		cls.RangeEndColumn = endOfWord(c.line, c.currentLower)
	}
	state.CurrentClass = NoToken
	state.CaptureDivisions = true
	state.CurrentMethod = NoToken
	state.PickFields = false
	state.InProcedureDivision = false
	return true
}

// typeID handles ENUM-ID, INTERFACE-ID and VALUETYPE-ID.
func (c *tokenCtx) typeID() bool {
	s, state := c.s, c.state
	style, parent := StyleNull, state.CurrentDivision
	switch c.prevLower {
	case "enum-id":
		style, parent = StyleEnumID, NoToken
	case "interface-id":
		style = StyleInterfaceID
	case "valuetype-id":
		style = StyleValueTypeID
	default:
		return false
	}
	tok := s.newToken(style, c.lineNumber, c.line, c.currentCol, trimLiteral(c.current, true), c.prevPlusCurrent, parent, "", false)
	state.CurrentClass = tok.ID
	state.CaptureDivisions = false
	state.CurrentMethod = NoToken
	state.PickFields = true
	return true
}

func (c *tokenCtx) functionID() bool {
	s, state := c.s, c.state
	if c.prevLower != "function-id" {
		return false
	}
	trimmed := trimLiteral(c.current, true)
	tok := s.newToken(StyleFunctionID, c.lineNumber, c.line, c.currentCol, trimmed, c.prevPlusCurrent, state.CurrentDivision, "", false)
	state.CurrentFunctionID = tok.ID
	state.CaptureDivisions = true
	state.PickFields = true
	state.Parameters = nil
	state.CurrentProgramTarget = &CallTarget{OriginalToken: c.current, Token: tok.ID}
	s.FunctionTargets[trimmed] = state.CurrentProgramTarget
	return true
}

func (c *tokenCtx) methodID() bool {
	s, state := c.s, c.state
	if c.prevLower != "method-id" {
		return false
	}
	var tok *Token
	if next := c.ts.peek(1); next.Lower == "property" {
		following := c.ts.peek(2).Text
		name := trimLiteral(following, true)
		tok = s.newToken(StyleProperty, c.lineNumber, c.line, c.currentCol, name, next.Text+" "+following, state.CurrentDivision, "", false)
		s.Methods[name] = tok.ID
	} else {
		style := StyleMethodID
		if trimLiteral(c.currentLower, true) == "new" {
			style = StyleConstructor
		}
		name := trimLiteral(c.current, true)
		tok = s.newToken(style, c.lineNumber, c.line, c.currentCol, name, c.prevPlusCurrent, state.CurrentDivision, "", false)
		s.Methods[name] = tok.ID
	}
	state.CurrentMethod = tok.ID
	state.PickFields = true
	state.CaptureDivisions = false
	return true
}

func (c *tokenCtx) endMethod() bool {
	s, state := c.s, c.state
	if state.CurrentMethod == NoToken || c.prevLower != "end" || c.currentLower != "method" {
		return false
	}
	if m := s.Token(state.CurrentMethod); m != nil {
		m.RangeEndLine = c.lineNumber
		m.RangeEndColumn = endOfWord(c.line, c.currentLower)
	}
	state.CurrentMethod = NoToken
	state.PickFields = false
	return true
}

func (c *tokenCtx) endProgram() bool {
	s, state := c.s, c.state
	if len(state.Programs) == 0 || c.prevLower != "end" || c.currentLower != "program" {
		return false
	}
	id := state.Programs[len(state.Programs)-1]
	state.Programs = state.Programs[:len(state.Programs)-1]
	if p := s.Token(id); p != nil {
		p.RangeEndLine = c.lineNumber
		p.RangeEndColumn = len(c.line)
	}

	safeCol := max(c.prevCol-1, 0)
	for _, scope := range []TokenID{state.CurrentDivision, state.CurrentSection, state.CurrentParagraph} {
		if t := s.Token(scope); t != nil {
			t.RangeEndLine = c.lineNumber
			t.RangeEndColumn = safeCol
		}
	}
	state.CurrentDivision = NoToken
	state.CurrentSection = NoToken
	state.CurrentParagraph = NoToken
	state.InProcedureDivision = false
	state.PickFields = false
	return true
}

func (c *tokenCtx) endFunction() bool {
	s, state := c.s, c.state
	if state.CurrentFunctionID == NoToken || c.prevLower != "end" || c.currentLower != "function" {
		return false
	}
	if fn := s.Token(state.CurrentFunctionID); fn != nil {
		fn.RangeEndLine = c.lineNumber
		fn.RangeEndColumn = endOfWord(c.line, c.currentLower)
	}
	s.newToken(StyleEndFunctionID, c.lineNumber, c.line, c.currentCol, c.prev, c.current, state.CurrentDivision, "", false)

	state.PickFields = false
	state.InProcedureDivision = false
	if d := s.Token(state.CurrentDivision); d != nil {
		d.RangeEndLine = c.lineNumber
	}
	if sec := s.Token(state.CurrentSection); sec != nil {
		sec.RangeEndLine = c.lineNumber
	}
	state.CurrentDivision = NoToken
	state.CurrentSection = NoToken
	state.CurrentParagraph = NoToken
	state.ProcedureDivision = NoToken
	state.CurrentFunctionID = NoToken
	return true
}

// paragraph recognises a label: a lone name between two periods in the
// procedure division. It never consumes the token.
func (c *tokenCtx) paragraph() bool {
	s, state := c.s, c.state
	if !state.CaptureDivisions || state.CurrentDivision == NoToken ||
		state.CurrentDivision != state.ProcedureDivision || !state.EndsWithDot || !state.PrevEndsWithDot {
		return false
	}
	if c.current == "" || s.isKeyword(c.currentLower) || !s.isParagraphCandidate(c.current) {
		return false
	}
	parent := state.CurrentSection
	if parent == NoToken {
		parent = state.CurrentDivision
	}
	tok := s.newToken(StyleParagraph, c.lineNumber, c.line, c.currentCol, c.current, c.current, parent, "", false)
	s.refs.Paragraphs[tok.NameLower] = tok.ID
	return false
}

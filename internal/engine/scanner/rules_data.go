package scanner

import (
	"fmt"
	"log/slog"
	"strings"
)

// pickUpUsing collects the USING and RETURNING items of a PROCEDURE DIVISION
// or ENTRY header.
func (c *tokenCtx) pickUpUsing() bool {
	s, state := c.s, c.state
	if !state.PickUpUsing {
		return false
	}
	if state.EndsWithDot {
		state.PickUpUsing = false
	}
	if c.prevRawLower == "type" {
		return true
	}

	switch c.currentLower {
	case "signed", "unsigned", "as", "type", "by":
	case "using", "reference":
		state.Using = UsingByReference
	case "value":
		state.Using = UsingByValue
	case "content":
		state.Using = UsingByContent
	case "output":
		state.Using = UsingByOutput
	case "returning":
		state.Using = UsingReturning
	default:
		if state.Using == UsingUnknown {
			state.PickUpUsing = false
			break
		}

		if c.currentLower == "any" {
			state.Parameters = append(state.Parameters, Parameter{Using: state.Using, Name: c.current})
		} else if c.currentLower != "" && !s.isKeyword(c.currentLower) && !isNumber(c.currentLower) {
			if s.addVariableReference(s.refs.UnknownReferences, c.currentLower, c.lineNumber, c.currentCol, StyleVariable) {
				state.Parameters = append(state.Parameters, Parameter{Using: state.Using, Name: c.current})
			}
		}

		if state.Using == UsingReturning {
			state.Using = UsingUnknown
		}

		// a header without a terminating period ends at the first keyword
		if c.currentLower != "any" && s.isKeyword(c.currentLower) {
			state.CurrentProgramTarget.CallParameters = state.Parameters
			state.Using = UsingUnknown
			state.PickUpUsing = false
			if !s.settings.LinterIgnoreMalformedUsing {
				line := c.lineNumber
				if t := s.Token(state.CurrentProgramTarget.Token); t != nil {
					line = t.StartLine
				}
				s.warn(line, CodeMalformedUsing, fmt.Sprintf("Unexpected keyword '%s' when scanning USING parameters", c.current))
			}
		}
	}

	if state.EndsWithDot {
		state.CurrentProgramTarget.CallParameters = state.Parameters
		state.PickUpUsing = false
	}
	return true
}

// skipToDot swallows the rest of a statement, feeding it to the COPY or
// REPLACE capture when one is open.
func (c *tokenCtx) skipToDot() bool {
	state := c.state
	if !state.SkipToDot {
		return false
	}

	switch {
	case state.InCopy:
		c.captureCopy()
	case state.InReplace:
		c.captureReplace()
	default:
		c.skipClause()
	}

	if state.EndsWithDot {
		c.finishStatement()
	}
	return true
}

// skipClause handles the tail of a data description entry.
func (c *tokenCtx) skipClause() {
	s, state := c.s, c.state
	lower := trimLiteral(c.currentLower, false)
	isKeyword := s.isKeyword(lower)

	if state.addReferencesDuringSkipToTag && IsValidLiteral(lower) && !isNumber(lower) && !isKeyword &&
		c.prevRawLower != "pic" && c.prevRawLower != "picture" {
		s.addVariableReference(s.refs.UnknownReferences, lower, c.lineNumber, c.currentCol, StyleUnknown)
	}

	switch {
	case lower == "value":
		state.InValueClause = true
		state.addVariableDuringSkipToTag = false
		return
	case lower == "pic" || lower == "picture":
		state.SkipNextToken = true
		state.addVariableDuringSkipToTag = false
		return
	case c.prevRawLower == "to":
		state.addVariableDuringSkipToTag = false
		return
	}

	if c.prevRawLower == "indexed" && c.ts.currentLower == "by" {
		state.addVariableDuringSkipToTag = true
	}
	if c.prevRawLower == "depending" && c.ts.currentLower == "on" {
		state.addVariableDuringSkipToTag = false
	}

	if state.addVariableDuringSkipToTag && !isKeyword && !state.InValueClause && IsValidLiteral(lower) && !isNumber(lower) {
		name := trimLiteral(c.current, false)
		tok := s.newToken(StyleVariable, c.lineNumber, c.line, c.currentCol, name, name, state.CurrentDivision, c.ts.prev, false)
		s.addVariableOrConstant(lower, tok)
	}
}

// captureCopy fills the open CopybookInfo from a COPY statement.
func (c *tokenCtx) captureCopy() {
	info := c.state.Copybook
	if info.isReplacing {
		target, replacement, mode, ok := info.capture.feed(c.current, c.pos())
		if ok && c.s.settings.EnableTextReplacement {
			if err := info.Replacing.Set(target, replacement, mode); err != nil {
				slog.Warn("invalid COPY REPLACING target", "path", c.s.Filename, "line", c.lineNumber, "error", err)
			}
		}
		return
	}

	switch c.currentLower {
	case "", "suppress", "resource", "indexed":
	case "of":
		info.IsOf = true
	case "in":
		info.IsIn = true
	case "replacing":
		info.isReplacing = true
	default:
		switch {
		case info.IsIn && info.InLibrary == "":
			info.InLibrary = c.current
		case info.IsOf && info.OfLibrary == "":
			info.OfLibrary = c.current
		case !info.IsIn && !info.IsOf:
			info.Name = c.current
			info.TrimmedName = trimLiteral(c.current, true)
			info.StartLine = c.lineNumber
			info.StartColumn = c.state.InCopyStartColumn
			info.Line = c.line
		}
	}
}

// captureReplace collects the pairs of a REPLACE statement.
func (c *tokenCtx) captureReplace() {
	state := c.state
	if c.currentLower == "off" && !state.replaceCapture.pending() {
		state.SkipToDot = false
		state.InReplace = false
		state.ReplaceMap.Clear()
		return
	}
	if target, replacement, mode, ok := state.replaceCapture.feed(c.current, c.pos()); ok {
		if err := state.ReplaceMap.Set(target, replacement, mode); err != nil {
			slog.Warn("invalid REPLACE target", "path", c.s.Filename, "line", c.lineNumber, "error", err)
		}
	}
}

// finishStatement closes the statement being skipped and runs a pending COPY.
func (c *tokenCtx) finishStatement() {
	s, state := c.s, c.state
	state.InReplace = false
	state.SkipToDot = false
	state.InValueClause = false
	state.addReferencesDuringSkipToTag = false
	state.addVariableDuringSkipToTag = false

	if state.InCopy {
		info := state.Copybook
		info.EndLine = c.lineNumber
		info.EndColumn = c.currentCol + len(c.ts.current)
		if !s.processCopybook(info) {
			slog.Debug("unable to process copybook",
				"path", s.Filename,
				"copybook", info.TrimmedName,
				"depth_limit_reached", info.Depth() >= s.settings.CopybookDepthLimit)
		}
		state.Current01Group = info.Saved01Group
	}
	state.InCopy = false
}

// fileSections turns on field capture for FD, SELECT and CD entries.
func (c *tokenCtx) fileSections() bool {
	sec := c.s.Token(c.state.CurrentSection)
	if sec == nil {
		return false
	}
	switch {
	case sec.NameLower == "input-output" && (c.prevLower == "fd" || c.prevLower == "select"):
		c.state.PickFields = true
	case sec.NameLower == "communication" && c.prevLower == "cd":
		c.state.PickFields = true
	}
	return false
}

// dataItem records level-numbered entries and file descriptions.
func (c *tokenCtx) dataItem() bool {
	s, state := c.s, c.state
	if !state.PickFields || c.prev == "" {
		return false
	}

	if isNumber(c.prev) && !isNumber(c.current) {
		c.levelEntry()
		return true
	}

	switch c.prevLower {
	case "fd", "sd", "cd", "rd", "select":
		if s.isKeyword(c.currentLower) {
			break
		}
		if IsValidLiteral(c.currentLower) {
			name := trimLiteral(c.current, false)
			tok := s.newToken(StyleVariable, c.lineNumber, c.line, c.currentCol, name, name, state.CurrentDivision, c.prevLower, false)
			s.addVariableOrConstant(c.currentLower, tok)
		}
		if c.prevLower == "rd" || c.prevLower == "select" {
			if c.prevLower == "select" {
				state.addReferencesDuringSkipToTag = true
			}
			state.SkipToDot = true
		}
		return true
	}

	if sec := s.Token(state.CurrentSection); sec != nil && sec.NameLower == "communication" &&
		!s.isKeyword(c.currentLower) && c.prevLower == "is" {
		name := trimLiteral(c.current, false)
		tok := s.newToken(StyleVariable, c.lineNumber, c.line, c.currentCol, name, name, state.CurrentDivision, c.prevLower, false)
		s.addVariableOrConstant(c.currentLower, tok)
	}
	return false
}

func (c *tokenCtx) levelEntry() {
	s, state := c.s, c.state
	isFiller := c.currentLower == "filler"
	pickUp := isFiller
	name := trimLiteral(c.current, false)
	line := c.line

	if !pickUp {
		switch {
		case c.currentLower == "pic" || c.currentLower == "picture" ||
			compPattern.MatchString(c.currentLower) || strings.HasPrefix(c.currentLower, "binary-"):
			// unnamed item such as "05 PIC X."
			line = c.prev + " filler "
			name = "filler"
			pickUp = true
		case !s.isKeyword(c.currentLower):
			pickUp = true
		}
	}
	if !pickUp || !IsValidLiteral(c.currentLower) {
		return
	}

	style := StyleVariable
	switch c.prev {
	case "78":
		style = StyleConstant
	case "88":
		style = StyleConditionName
	case "66":
		style = StyleRenameLevel
	}

	next := c.ts.peek(1).Lower
	sec := s.Token(state.CurrentSection)
	inReport := sec != nil && sec.NameLower == "report"

	extra := c.prev
	var redefines, occurs bool
	if c.prev == "01" || c.prev == "1" {
		if next == "redefines" || next == "" || inReport {
			extra += "-GROUP"
		}
		if c.ts.isTokenPresent("constant") {
			style = StyleConstant
		}
		redefines = c.ts.isTokenPresent("redefines")
		if redefines {
			style = StyleUnion
		}
	} else {
		if next == "" {
			extra += "-GROUP"
		}
		occurs = c.ts.isTokenPresent("occurs")
		if occurs {
			extra += "-OCCURS"
		}
	}

	// condition names nest under the item they test
	parent := state.CurrentDivision
	if lvl := s.Token(state.CurrentLevel); lvl != nil && c.prev == "88" {
		parent = lvl.ID
	}
	tok := s.newToken(style, c.lineNumber, line, c.prevCol, name, name, parent, extra, false)
	if !isFiller {
		s.addVariableOrConstant(c.currentLower, tok)
	}

	if lvl := s.Token(state.CurrentLevel); lvl != nil && c.prev == "88" {
		lvl.RangeEndLine = tok.StartLine
		lvl.RangeEndColumn = tok.StartColumn + len(tok.Name)
	}
	if c.prev != "88" {
		state.CurrentLevel = tok.ID
		tok.RangeStartColumn = min(tok.RangeStartColumn, c.prevCol)
	}

	switch c.prev {
	case "01", "1", "66", "77", "78":
		if next == "" || redefines || occurs || (inReport && next == "type") {
			state.Current01Group = tok.ID
		} else {
			state.Current01Group = NoToken
		}
	}
	if g := s.Token(state.Current01Group); g != nil && !state.InCopy {
		g.RangeEndLine = tok.RangeStartLine
		g.RangeEndColumn = tok.RangeEndColumn
	}

	// the entry has more clauses
	if !state.EndsWithDot {
		state.SkipToDot = true
		state.addReferencesDuringSkipToTag = true
	}
}

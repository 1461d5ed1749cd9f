package scanner

import (
	"context"
	"log/slog"
	"strings"
)

func (s *Scanner) resolve(name, library string) string {
	if s.opts.Resolver == nil {
		return ""
	}
	return s.opts.Resolver.Resolve(name, library, s.Filename)
}

func (s *Scanner) copybookParent() TokenID {
	state := s.state()
	if s.settings.CopybooksNested && state.CurrentSection != NoToken {
		return state.CurrentSection
	}
	return state.CurrentDivision
}

// processCopybook emits the token for a COPY statement, resolves the file and
// scans it in place. It returns false when the copybook was not scanned.
func (s *Scanner) processCopybook(info *CopybookInfo) bool {
	if info.depths.len() > s.settings.CopybookDepthLimit {
		return false
	}
	info.depths.push(info)
	state := s.state()

	var tok *Token
	if info.IsIn || info.IsOf {
		middle := " of "
		if info.IsIn {
			middle = " in "
		}
		lib := info.Library()
		desc := info.Verb + " " + info.Name + middle + lib
		tok = s.newToken(StyleCopyBookInOrOf, info.StartLine, info.Line, info.StartColumn, info.TrimmedName, desc, s.copybookParent(), lib, false)
	} else {
		tok = s.newToken(StyleCopyBook, info.StartLine, info.Line, info.StartColumn, info.TrimmedName, info.Verb+" "+info.Name, s.copybookParent(), "", false)
	}
	tok.RangeEndLine = info.EndLine
	tok.RangeEndColumn = info.EndColumn
	state.InCopy = false

	fileName := s.resolve(info.TrimmedName, tok.ExtraInformation1)
	if fileName == "" {
		info.depths.pop()
		if !s.settings.LinterIgnoreMissingCopybook {
			s.refs.diags.addMissing(Diagnostic{
				File:    s.Filename,
				Line:    tok.StartLine,
				Message: "Unable to locate copybook " + info.TrimmedName,
				Code:    CodeMissingCopybook,
			})
		}
		return false
	}

	info.FileName = fileName
	info.FileModTime = s.opts.Resolver.ModTime(fileName)
	s.refs.CopyBooksUsed[fileName] = append(s.refs.CopyBooksUsed[fileName], CopybookUse{Token: tok.ID, Info: info})
	use := len(s.refs.CopyBooksUsed[fileName]) - 1

	if info.depths.count(fileName) >= 2 {
		slog.Debug("possible recursive copybook", "path", s.Filename, "copybook", fileName)
		s.warnOnce(tok.StartLine, CodeRecursiveCopybook, "Possible recursive COPYBOOK "+fileName)
		info.depths.pop()
		return false
	}

	if s.settings.ParseCopybooksForReferences {
		src, err := s.opts.Open(fileName, nil)
		if err != nil {
			slog.Warn("unable to open copybook", "path", fileName, "error", err)
			s.refs.diags.addMissing(Diagnostic{
				File:    s.Filename,
				Line:    tok.StartLine,
				Message: "Unable to perform inline copybook scan " + info.TrimmedName,
				Code:    CodeMissingCopybook,
			})
		} else {
			prevMap := state.ReplaceMap
			if s.settings.EnableTextReplacement {
				state.ReplaceMap = Union(prevMap, info.Replacing)
			}
			s.scanInline(src, info.Saved01Group, false)
			state = s.state()
			state.ReplaceMap = prevMap
			state.Copybook = info
			if uses := s.refs.CopyBooksUsed[fileName]; use < len(uses) {
				uses[use].ScanComplete = true
			}
		}
	}

	info.depths.pop()
	return true
}

// scanInline runs a nested scanner over src with the shared tables, then
// gives back the parse state the caller had.
func (s *Scanner) scanInline(src LineSource, saved01Group TokenID, fromComments bool) {
	refs := s.refs
	state := s.state()
	saved := state.save()
	wasTopLevel := refs.topLevel
	refs.topLevel = false

	state.Current01Group = NoToken
	state.RestorePrevState = true
	state.IgnoreInOutlineView = true
	// a hinted copybook may be named before DATA DIVISION
	if fromComments {
		state.PickFields = true
	}

	nested := newScanner(src, s.opts, refs, fromComments)
	nested.keywords = s.keywords
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := nested.Scan(ctx); err != nil {
		slog.Debug("nested scan stopped", "path", nested.Filename, "error", err)
	}

	refs.topLevel = wasTopLevel
	// an abort replaces the state; nothing is left to restore
	if refs.State == state {
		state.restore(saved, saved01Group)
	}
}

// sqlInclude handles EXEC SQL INCLUDE name, which behaves like COPY name.
func (s *Scanner) sqlInclude(c *tokenCtx) {
	state := s.state()
	raw := c.ts.peek(1).Text
	trimmed := trimLiteral(raw, true)

	// the EXEC token is replaced by the include
	s.refs.popInOrder()
	tok := s.newToken(StyleCopyBook, c.lineNumber, c.line, c.currentCol, trimmed, "EXEC SQL INCLUDE "+raw, s.copybookParent(), "", false)
	if _, seen := s.refs.CopyBooksUsed[trimmed]; seen {
		return
	}

	info := newCopybookInfo(state.Current01Group, state.Copybook.depths)
	info.Verb = "EXEC SQL INCLUDE"
	info.Name = raw
	info.TrimmedName = trimmed
	info.Line = c.line
	info.StartLine = c.lineNumber
	info.EndLine = c.lineNumber
	info.StartColumn = c.currentCol
	info.EndColumn = strings.Index(c.line, raw) + len(raw)

	fileName := s.resolve(trimmed, "")
	if fileName == "" {
		slog.Debug("sql include not found", "path", s.Filename, "copybook", trimmed)
		return
	}
	info.FileName = fileName
	info.FileModTime = s.opts.Resolver.ModTime(fileName)
	s.refs.CopyBooksUsed[trimmed] = []CopybookUse{{Token: tok.ID, Info: info}}

	src, err := s.opts.Open(fileName, nil)
	if err != nil {
		s.refs.diags.addMissing(Diagnostic{
			File:    s.Filename,
			Line:    tok.StartLine,
			Message: "Unable to perform inline sql include " + trimmed,
			Code:    CodeMissingCopybook,
		})
		return
	}

	prevCopybook := state.Copybook
	prevMap := state.ReplaceMap
	state.Copybook = info
	s.scanInline(src, info.Saved01Group, false)
	state = s.state()
	state.ReplaceMap = prevMap
	state.Copybook = prevCopybook
	state.InCopy = false
	if uses := s.refs.CopyBooksUsed[trimmed]; len(uses) != 0 {
		uses[0].ScanComplete = true
	}
}

// warnOnce adds a general warning unless an identical one exists.
func (s *Scanner) warnOnce(line int, code, msg string) {
	for _, d := range s.refs.diags.general {
		if d.Code == code && d.Message == msg {
			return
		}
	}
	s.warn(line, code, msg)
}

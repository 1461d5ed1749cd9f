package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CopybookResolver maps a logical copybook name to a file.
type CopybookResolver interface {
	// Resolve returns the file for name, or "" when it cannot be found.
	Resolve(name, inDirectory, sourceFilename string) string
	ModTime(path string) int64
}

// Events receives the tokens of a top-level scan, nested scans included.
type Events interface {
	Start(s *Scanner)
	ProcessToken(s *Scanner, tok *Token)
	Finish(s *Scanner)
}

// OpenFunc loads a copybook. Lines not matching filter are blanked.
type OpenFunc func(path string, filter *regexp.Regexp) (LineSource, error)

// Options configure a Scanner.
type Options struct {
	Settings Settings
	Resolver CopybookResolver
	Events   Events
	Open     OpenFunc
}

func defaultOpen(path string, filter *regexp.Regexp) (LineSource, error) {
	src, err := LoadFile(path, filter)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Scanner is a single-pass COBOL scanner for one document. Copybooks are
// scanned by nested Scanners sharing the same SharedSourceReferences.
type Scanner struct {
	src      LineSource
	reader   *sourceReader
	opts     Options
	settings Settings
	keywords wordSet
	refs     *SharedSourceReferences

	FileID            int
	Filename          string
	ModTime           int64
	ImplicitProgramID string
	ProgramID         string
	Format            Format
	SourceIsCopybook  bool
	LooksLikeCOBOL    bool
	ScanAborted       bool

	CallTargets     map[string]*CallTarget
	FunctionTargets map[string]*CallTarget
	Classes         map[string]TokenID
	Methods         map[string]TokenID
	Regions         []TokenID

	fromComments bool
	prevStream   *tokenStream

	execTokensInOrder []TokenID
	currentExecName   string
	currentExecVerb   string
	activeRegions     []TokenID
	implicitCount     int
	lastLSIgnore      TokenID
	porter            *SourcePorter

	// remap is set while text rewritten by REPLACE is being scanned.
	remap *columnRemap

	// ctx is the context of the running Scan, used by nested copybook scans.
	ctx context.Context
}

// New prepares a top-level scan of src.
func New(src LineSource, opts Options) *Scanner {
	opts.Settings = opts.Settings.withDefaults()
	return newScanner(src, opts, NewSharedSourceReferences(opts.Settings), false)
}

func newScanner(src LineSource, opts Options, refs *SharedSourceReferences, fromComments bool) *Scanner {
	if opts.Open == nil {
		opts.Open = defaultOpen
	}
	filename := filepath.Clean(src.Filename())
	langID := src.LanguageID()
	if langID == "" {
		langID = opts.Settings.LanguageID
	}
	s := &Scanner{
		src:               src,
		opts:              opts,
		settings:          opts.Settings,
		keywords:          keywordsFor(langID),
		refs:              refs,
		Filename:          filename,
		ImplicitProgramID: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		CallTargets:       make(map[string]*CallTarget),
		FunctionTargets:   make(map[string]*CallTarget),
		Classes:           make(map[string]TokenID),
		Methods:           make(map[string]TokenID),
		fromComments:      fromComments,
		lastLSIgnore:      NoToken,
	}
	s.reader = newSourceReader(src, s.processComment)
	switch strings.ToLower(langID) {
	case "cobol", "bitlang-cobol":
		if opts.Settings.EnableSourcePorter {
			s.porter = NewSourcePorter()
		}
	}
	return s
}

// References returns the shared tables of this scan.
func (s *Scanner) References() *SharedSourceReferences { return s.refs }

func (s *Scanner) state() *ParseState { return s.refs.State }

// Source returns the document being scanned.
func (s *Scanner) Source() LineSource { return s.src }

// Settings returns the options in effect.
func (s *Scanner) Settings() Settings { return s.settings }

// IsTopLevel reports whether s owns its SharedSourceReferences.
func (s *Scanner) IsTopLevel() bool { return s.refs.topLevel }

// Token is a shortcut for References().Token.
func (s *Scanner) Token(id TokenID) *Token { return s.refs.Token(id) }

// Tokens returns the ordered token stream.
func (s *Scanner) Tokens() []*Token {
	out := make([]*Token, 0, len(s.refs.TokensInOrder))
	for _, id := range s.refs.TokensInOrder {
		out = append(out, s.refs.tokens[id])
	}
	return out
}

// MissingCopybooks lists unresolved copybooks, one per name and file.
func (s *Scanner) MissingCopybooks() []Diagnostic { return s.refs.diags.missing }

// PortWarnings lists directives that need porting.
func (s *Scanner) PortWarnings() []Diagnostic { return s.refs.diags.port }

// GeneralWarnings lists every other warning.
func (s *Scanner) GeneralWarnings() []Diagnostic { return s.refs.diags.general }

// Diagnostics returns every warning of the scan.
func (s *Scanner) Diagnostics() []Diagnostic {
	d := s.refs.diags
	out := make([]Diagnostic, 0, len(d.missing)+len(d.port)+len(d.general))
	out = append(out, d.missing...)
	out = append(out, d.general...)
	return append(out, d.port...)
}

func (s *Scanner) warn(line int, code, msg string) {
	s.refs.diags.general = append(s.refs.diags.general, Diagnostic{
		File: s.Filename, Line: line, Message: msg, Code: code,
	})
}

// Scan runs the scan. It only fails when the scan was abandoned, in which
// case the error carries the SCAN_ABORTED code and the tables are empty.
func (s *Scanner) Scan(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "Scanner.Scan",
		trace.WithAttributes(attribute.String("file", s.Filename)))
	defer span.End()
	s.ctx = ctx

	start := time.Now()
	err := s.scan(ctx)
	if s.refs.topLevel {
		observability.ScanDuration.WithLabelValues(s.Format.String()).Observe(time.Since(start).Seconds())
		observability.TokensEmittedTotal.Add(float64(len(s.refs.TokensInOrder)))
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Scanner) scan(ctx context.Context) error {
	refs := s.refs
	state := s.state()

	s.FileID = refs.register(s.src)
	state.processed[s.Filename] = struct{}{}

	if refs.topLevel {
		refs.startTime = time.Now()
		s.ModTime = s.src.ModTime()
		if s.opts.Events != nil {
			s.opts.Events.Start(s)
		}
		if !s.preScan() {
			return s.abortError("")
		}
		if !s.LooksLikeCOBOL {
			return nil
		}
	} else {
		s.LooksLikeCOBOL = true
	}

	s.Format = DetectFormat(s.src, s.settings)
	s.reader.setFormat(s.Format)
	s.reader.commentCount = 0
	s.prevStream = nil

	for l := 0; l < s.src.LineCount(); l++ {
		if refs.aborted {
			return s.abortError("")
		}
		if err := ctx.Err(); err != nil {
			s.abort("cancelled", l, fmt.Sprintf("Aborted scanning %s: %v", s.Filename, err))
			return s.abortError(err.Error())
		}
		if elapsed := time.Since(refs.startTime); elapsed > s.settings.ScanTimeout {
			s.abort("timeout", l, fmt.Sprintf("Aborted scanning %s after %s", s.Filename, elapsed.Round(time.Millisecond)))
			return s.abortError("timeout")
		}
		if !s.scanLine(l) {
			break
		}
	}
	if refs.aborted {
		return s.abortError("")
	}

	if refs.topLevel {
		s.finish()
		if s.opts.Events != nil {
			s.opts.Events.Finish(s)
		}
	}
	return nil
}

// scanLine feeds one line through the rules. It returns false at end of input.
func (s *Scanner) scanLine(l int) (more bool) {
	state := s.state()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scanner line error", "path", s.Filename, "line", l, "error", r)
			more = true
		}
	}()

	state.CurrentLineIsComment = false
	processed, ok := s.reader.line(l)
	if !ok {
		return false
	}
	if processed == "" && state.CurrentLineIsComment {
		return true
	}

	line := strings.TrimRight(processed, " \t\r")
	if len(line) > s.settings.MaxLineLength {
		s.abort("line_length", l, fmt.Sprintf("Aborted scanning %s max line length exceeded", s.Filename))
		return false
	}
	if line != "" {
		prev := s.prevStream
		if prev != nil && prev.endsWithDot {
			prev = nil
		}
		s.prevStream = s.parseLine(l, prev, line)
	}

	if s.porter != nil {
		if d, ok := s.porter.Check(s.Filename, l, line); ok {
			s.refs.diags.port = append(s.refs.diags.port, d)
		}
	}
	return true
}

func (s *Scanner) parseLine(lineNumber int, prev *tokenStream, line string) *tokenStream {
	state := s.state()
	ts := newTokenStream(line, lineNumber, prev)
	out := s.processTokens(lineNumber, ts, line, state.ReplaceMap.Len() != 0)

	if g := s.Token(state.Current01Group); g != nil && line != "" && !state.InCopy {
		g.RangeEndLine = lineNumber
		g.RangeEndColumn = len(line)
	}
	if lvl := s.Token(state.CurrentLevel); lvl != nil && lvl.Style == StyleVariable {
		lvl.RangeEndLine = lineNumber
		lvl.RangeEndColumn = len(line)
	}
	return out
}

// abort drops everything gathered so far and records why.
func (s *Scanner) abort(reason string, line int, msg string) {
	slog.Warn("scan aborted", "path", s.Filename, "reason", reason, "line", line)
	observability.ScansAbortedTotal.WithLabelValues(reason).Inc()
	s.clearScanData()
	s.warn(line, CodeScanAborted, msg)
}

func (s *Scanner) abortError(detail string) error {
	s.ScanAborted = true
	msg := "scan aborted"
	if detail != "" {
		msg += ": " + detail
	}
	return cerrors.AddContext(cerrors.New(cerrors.CodeScanAborted, msg), cerrors.CtxPath, s.Filename)
}

func (s *Scanner) clearScanData() {
	s.CallTargets = make(map[string]*CallTarget)
	s.FunctionTargets = make(map[string]*CallTarget)
	s.Classes = make(map[string]TokenID)
	s.Methods = make(map[string]TokenID)
	s.Regions = nil
	s.execTokensInOrder = nil
	s.ScanAborted = true
	s.refs.diags.clearMissing()
	s.refs.reset(s.settings)
	s.refs.aborted = true
}

// finish closes the open scopes and resolves forward references.
func (s *Scanner) finish() {
	refs := s.refs
	state := s.state()

	lastLine := max(s.src.LineCount()-1, 0)
	last, _ := s.src.Line(lastLine, true)
	closeAt := func(id TokenID) {
		if t := s.Token(id); t != nil {
			t.RangeEndLine = lastLine
			t.RangeEndColumn = len(last)
		}
	}

	for len(state.Programs) != 0 {
		closeAt(state.Programs[len(state.Programs)-1])
		state.Programs = state.Programs[:len(state.Programs)-1]
	}
	closeAt(state.CurrentDivision)
	closeAt(state.CurrentSection)
	closeAt(state.CurrentParagraph)

	if s.ImplicitProgramID != "" {
		tok := s.newToken(StyleImplicitProgramID, 0, "", 0, s.ImplicitProgramID, s.ImplicitProgramID, NoToken, "", false)
		tok.RangeStartLine = 0
		tok.RangeEndLine = lastLine
		tok.RangeEndColumn = len(last)
		tok.IgnoreInOutlineView = true
		refs.popInOrder()

		target := state.CurrentProgramTarget
		target.Token = tok.ID
		if target.OriginalToken == "" {
			target.OriginalToken = s.ImplicitProgramID
		}
		s.CallTargets[s.ImplicitProgramID] = target
	}

	for name, decl := range refs.ExecSQLDeclare {
		for _, id := range s.execTokensInOrder {
			s.sqlDeclareReferences(name, s.Token(id), decl)
		}
	}

	for name, unknown := range refs.UnknownReferences {
		if vars, ok := refs.ConstantsOrVariables[name]; ok {
			style, add := s.visibleVariableStyle(vars)
			if s.settings.EnableTextReplacement {
				add = true
			}
			if add {
				s.transferReference(name, unknown, refs.ConstantsOrVariablesReferences, style)
			}
			continue
		}
		if s.isVisibleSection(name) {
			s.transferReference(name, unknown, refs.TargetReferences, StyleSection)
		} else if s.isVisibleParagraph(name) {
			s.transferReference(name, unknown, refs.TargetReferences, StyleParagraph)
		}
	}

	if state.SkipToEndLsIgnore {
		if t := s.Token(s.lastLSIgnore); t != nil {
			s.warn(t.StartLine, CodeLSIgnore, "Missing "+strings.ToUpper(lsIgnoreEnd))
			refs.IgnoreLSRanges = nil
		}
	}
	refs.UnknownReferences = make(map[string][]SourceReference)
}

// newToken creates a token and updates the enclosing scope ranges.
func (s *Scanner) newToken(style Style, lineNumber int, line string, currentCol int, name, description string, parent TokenID, extra string, implicit bool) *Token {
	state := s.state()
	startColumn := currentCol
	if style != StyleCopyBook && style != StyleCopyBookInOrOf {
		startColumn = indexFrom(line, name, currentCol)
		if startColumn == -1 {
			startColumn = strings.Index(line, name)
			if startColumn == -1 {
				startColumn = min(currentCol, len(line))
			}
		}
	}
	startColumn = s.sourceColumn(lineNumber, max(startColumn, 0))
	trimmed := strings.TrimSpace(name)

	tok := s.refs.allocate(Token{
		FileID:                          s.FileID,
		Filename:                        s.Filename,
		Style:                           style,
		StartLine:                       lineNumber,
		StartColumn:                     startColumn,
		EndLine:                         lineNumber,
		EndColumn:                       startColumn + len(trimmed),
		RangeStartLine:                  lineNumber,
		RangeStartColumn:                startColumn,
		RangeEndLine:                    lineNumber,
		RangeEndColumn:                  startColumn + len(trimmed),
		Name:                            trimmed,
		NameLower:                       strings.ToLower(trimmed),
		Description:                     description,
		Parent:                          parent,
		InSection:                       state.CurrentSection,
		ExtraInformation1:               extra,
		InProcedureDivision:             state.InProcedureDivision,
		IgnoreInOutlineView:             state.IgnoreInOutlineView,
		IsImplicit:                      implicit,
		IsFromScanCommentsForReferences: s.fromComments,
	})

	if tok.IgnoreInOutlineView || style == StyleImplicitProgramID {
		s.pushToken(tok, true)
		return tok
	}

	switch style {
	case StyleDivision:
		s.closeRange(state.CurrentDivision, lineNumber, tok.RangeStartColumn)
		s.closeRange(state.CurrentSection, lineNumber, tok.RangeStartColumn)
		state.CurrentSection = NoToken
		state.CurrentParagraph = NoToken
		s.pushToken(tok, true)
	case StyleSection:
		s.closeRange(state.CurrentSection, lineNumber, tok.RangeStartColumn)
		state.CurrentParagraph = NoToken
		s.pushToken(tok, state.InProcedureDivision)
	case StyleParagraph:
		s.closeRange(state.CurrentSection, lineNumber, tok.RangeStartColumn)
		state.CurrentParagraph = tok.ID
		s.closeRange(state.CurrentDivision, lineNumber, tok.RangeStartColumn)
		s.pushToken(tok, true)
	case StyleIgnoreLS:
		s.pushToken(tok, false)
	default:
		s.closeRange(state.CurrentParagraph, lineNumber, tok.RangeStartColumn)
		s.pushToken(tok, true)
	}
	return tok
}

func (s *Scanner) closeRange(id TokenID, line, col int) {
	t := s.Token(id)
	if t == nil {
		return
	}
	t.RangeEndLine = line
	if col != 0 {
		t.RangeEndColumn = col - 1
	}
}

func (s *Scanner) pushToken(tok *Token, sendEvent bool) {
	s.refs.TokensInOrder = append(s.refs.TokensInOrder, tok.ID)
	if sendEvent && s.opts.Events != nil {
		s.opts.Events.ProcessToken(s, tok)
	}
}

func indexFrom(s, substr string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], substr)
	if i == -1 {
		return -1
	}
	return from + i
}

func (s *Scanner) isKeyword(word string) bool { return s.keywords.has(word) }

func (s *Scanner) isVisibleSection(name string) bool {
	return s.isVisible(s.refs.Sections, name)
}

func (s *Scanner) isVisibleParagraph(name string) bool {
	return s.isVisible(s.refs.Paragraphs, name)
}

func (s *Scanner) isVisible(m map[string]TokenID, name string) bool {
	if name == "" {
		return false
	}
	id, ok := m[name]
	if !ok {
		id, ok = m[strings.ToLower(name)]
	}
	if !ok {
		return false
	}
	t := s.Token(id)
	return t != nil && (t.IsFromScanCommentsForReferences || !t.IgnoreInOutlineView)
}

// isParagraphCandidate accepts a label-shaped name that is not a data item.
func (s *Scanner) isParagraphCandidate(id string) bool {
	if !isParagraphName(id) {
		return false
	}
	_, isVar := s.refs.ConstantsOrVariables[strings.ToLower(id)]
	return !isVar
}

func (s *Scanner) addVariableReference(refs map[string][]SourceReference, lowerName string, line, column int, style Style) bool {
	return s.recordVariableReference(refs, lowerName, line, s.sourceColumn(line, column), style)
}

// recordVariableReference adds a reference at a column of the line as written.
func (s *Scanner) recordVariableReference(refs map[string][]SourceReference, lowerName string, line, column int, style Style) bool {
	if lowerName == "" || s.isKeyword(lowerName) || !IsValidLiteral(lowerName) {
		return false
	}
	list := refs[lowerName]
	if !hasReference(list, s.FileID, line, column, len(lowerName)) {
		refs[lowerName] = append(list, SourceReference{
			FileID:         s.FileID,
			Line:           line,
			Column:         column,
			Length:         len(lowerName),
			Style:          style,
			IsFromComments: s.fromComments,
			Name:           lowerName,
		})
	}
	return true
}

func (s *Scanner) addTargetReference(refs map[string][]SourceReference, name string, line, column int, style Style, reason string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	if s.isKeyword(lower) || !IsValidLiteral(lower) {
		return false
	}
	column = s.sourceColumn(line, column)
	ref := SourceReference{
		FileID:         s.FileID,
		Line:           line,
		Column:         column,
		Length:         len(name),
		Style:          style,
		IsFromComments: s.fromComments,
		Name:           name,
		Reason:         reason,
	}

	state := s.state()
	container := s.Token(state.CurrentParagraph)
	if container == nil {
		container = s.Token(state.CurrentSection)
	}
	if container != nil && container.InProcedureDivision {
		if hasReference(refs[lower], s.FileID, line, column, len(name)) {
			return true
		}
		refs[lower] = append(refs[lower], ref)
		s.refs.SectionOutRefs[container.NameLower] = append(s.refs.SectionOutRefs[container.NameLower], ref)
		return true
	}
	refs[lower] = append(refs[lower], ref)
	return true
}

// addVariableOrConstant registers a data item definition. The definition
// position is recorded as its first reference.
func (s *Scanner) addVariableOrConstant(lowerName string, tok *Token) {
	if lowerName == "" || s.isKeyword(lowerName) {
		return
	}
	if !s.recordVariableReference(s.refs.ConstantsOrVariablesReferences, lowerName, tok.StartLine, tok.StartColumn, tok.Style) {
		return
	}
	s.refs.ConstantsOrVariables[lowerName] = append(s.refs.ConstantsOrVariables[lowerName], Variable{
		Token:               tok.ID,
		Style:               tok.Style,
		IgnoreInOutlineView: tok.IgnoreInOutlineView,
	})
}

func (s *Scanner) transferReference(name string, from []SourceReference, to map[string][]SourceReference, style Style) {
	if name == "" || s.isKeyword(name) {
		return
	}
	for _, ref := range from {
		if hasReference(to[name], ref.FileID, ref.Line, ref.Column, ref.Length) {
			continue
		}
		ref.Style = style
		to[name] = append(to[name], ref)
	}
}

// visibleVariableStyle reports the style to record for a usage of a known
// data item, and false when every definition is hidden.
func (s *Scanner) visibleVariableStyle(vars []Variable) (Style, bool) {
	style := StyleVariable
	add := true
	for _, v := range vars {
		if !v.IgnoreInOutlineView || s.Token(v.Token).IsFromScanCommentsForReferences {
			if v.Style != StyleUnknown {
				style = v.Style
			}
		} else {
			add = false
		}
	}
	return style, add
}

// FindNearestSectionOrParagraph returns the innermost section or paragraph
// whose range holds line. Paragraphs win over sections.
func (s *Scanner) FindNearestSectionOrParagraph(line int) (TokenID, bool) {
	best := NoToken
	for _, m := range []map[string]TokenID{s.refs.Sections, s.refs.Paragraphs} {
		ids := make([]TokenID, 0, len(m))
		for _, id := range m {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if t := s.Token(id); t != nil && t.ContainsLine(line) {
				best = id
			}
		}
	}
	return best, best != NoToken
}

package scanner

import (
	"strings"
	"time"
)

// SharedSourceReferences is the aggregate of one top-level scan. Nested
// copybook scans borrow it, so definitions and usages from every included
// file land in the same tables.
type SharedSourceReferences struct {
	Filenames []string
	sources   []LineSource

	tokens        []*Token
	TokensInOrder []TokenID

	TargetReferences               map[string][]SourceReference
	ConstantsOrVariablesReferences map[string][]SourceReference
	// UnknownReferences holds names used before they were defined. When the
	// scan finishes, those that resolved move to the variable or target
	// tables and the rest are discarded, so the map is empty afterwards.
	UnknownReferences map[string][]SourceReference
	IgnoreLSRanges    []SourceRange

	ConstantsOrVariables map[string][]Variable
	Sections             map[string]TokenID
	Paragraphs           map[string]TokenID
	CopyBooksUsed        map[string][]CopybookUse
	ExecSQLDeclare       map[string]*SQLDeclare

	// IgnoreUnusedSymbol maps a lowercase name to its original spelling.
	IgnoreUnusedSymbol map[string]string

	// SectionOutRefs lists the targets referenced from inside each
	// procedure-division section or paragraph, keyed by its lowercase name.
	SectionOutRefs map[string][]SourceReference

	State *ParseState

	topLevel  bool
	aborted   bool
	// startTime is set when the top-level Scan begins.
	startTime time.Time
	diags     *diagnosticSink
}

func NewSharedSourceReferences(settings Settings) *SharedSourceReferences {
	r := &SharedSourceReferences{topLevel: true}
	r.reset(settings)
	return r
}

func (r *SharedSourceReferences) reset(settings Settings) {
	r.Filenames = nil
	r.sources = nil
	r.tokens = nil
	r.TokensInOrder = nil
	r.TargetReferences = make(map[string][]SourceReference)
	r.ConstantsOrVariablesReferences = make(map[string][]SourceReference)
	r.UnknownReferences = make(map[string][]SourceReference)
	r.IgnoreLSRanges = nil
	r.ConstantsOrVariables = make(map[string][]Variable)
	r.Sections = make(map[string]TokenID)
	r.Paragraphs = make(map[string]TokenID)
	r.CopyBooksUsed = make(map[string][]CopybookUse)
	r.ExecSQLDeclare = make(map[string]*SQLDeclare)
	r.IgnoreUnusedSymbol = make(map[string]string)
	r.SectionOutRefs = make(map[string][]SourceReference)
	r.State = newParseState(settings)
	if r.diags == nil {
		r.diags = newDiagnosticSink()
	}
}

func (r *SharedSourceReferences) register(src LineSource) int {
	r.Filenames = append(r.Filenames, src.Filename())
	r.sources = append(r.sources, src)
	return len(r.Filenames) - 1
}

func (r *SharedSourceReferences) source(fileID int) LineSource {
	if fileID < 0 || fileID >= len(r.sources) {
		return nil
	}
	return r.sources[fileID]
}

// Token returns the token with id, or nil for NoToken.
func (r *SharedSourceReferences) Token(id TokenID) *Token {
	if id < 0 || int(id) >= len(r.tokens) {
		return nil
	}
	return r.tokens[id]
}

// TokenCount returns the number of tokens in the arena, including tokens
// that were removed from the ordered stream.
func (r *SharedSourceReferences) TokenCount() int { return len(r.tokens) }

// FileID returns the index of filename, or -1.
func (r *SharedSourceReferences) FileID(filename string) int {
	for i, f := range r.Filenames {
		if f == filename {
			return i
		}
	}
	return -1
}

func (r *SharedSourceReferences) allocate(t Token) *Token {
	t.ID = TokenID(len(r.tokens))
	tok := &t
	r.tokens = append(r.tokens, tok)
	return tok
}

// popInOrder drops the last token of the ordered stream. The token itself
// stays addressable.
func (r *SharedSourceReferences) popInOrder() {
	if n := len(r.TokensInOrder); n != 0 {
		r.TokensInOrder = r.TokensInOrder[:n-1]
	}
}

// ReferenceCounts splits the occurrences of name into the definition at
// (fileID, line, column) and every other usage.
func ReferenceCounts(refs map[string][]SourceReference, fileID int, name string, line, column int) (defined, referenced int) {
	list, ok := refs[name]
	if !ok {
		list, ok = refs[strings.ToLower(name)]
	}
	if !ok {
		return 0, 0
	}
	for _, ref := range list {
		if ref.Line == line && ref.Column == column && ref.FileID == fileID {
			defined++
		} else {
			referenced++
		}
	}
	return defined, referenced
}

// VariableReferenceCounts is ReferenceCounts over data item references.
func (r *SharedSourceReferences) VariableReferenceCounts(name string, fileID, line, column int) (int, int) {
	return ReferenceCounts(r.ConstantsOrVariablesReferences, fileID, name, line, column)
}

// TargetReferenceCounts is ReferenceCounts over section and paragraph references.
func (r *SharedSourceReferences) TargetReferenceCounts(name string, fileID, line, column int) (int, int) {
	return ReferenceCounts(r.TargetReferences, fileID, name, line, column)
}

func hasReference(list []SourceReference, fileID, line, column, length int) bool {
	for _, ref := range list {
		if ref.FileID == fileID && ref.Line == line && ref.Column == column && ref.Length == length {
			return true
		}
	}
	return false
}

// diagnosticSink collects warnings from the top-level scan and every nested
// scan it starts.
type diagnosticSink struct {
	missing     []Diagnostic
	missingSeen map[string]struct{}
	port        []Diagnostic
	general     []Diagnostic
}

func newDiagnosticSink() *diagnosticSink {
	return &diagnosticSink{missingSeen: make(map[string]struct{})}
}

func (d *diagnosticSink) addMissing(diag Diagnostic) {
	key := diag.File + "\x00" + diag.Message
	if _, ok := d.missingSeen[key]; ok {
		return
	}
	d.missingSeen[key] = struct{}{}
	d.missing = append(d.missing, diag)
}

func (d *diagnosticSink) clearMissing() {
	d.missing = nil
	d.missingSeen = make(map[string]struct{})
}

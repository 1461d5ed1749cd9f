package scanner

// TokenID addresses a Token in the arena owned by SharedSourceReferences.
type TokenID int

// NoToken is the absent TokenID.
const NoToken TokenID = -1

// Token is a recognised construct. Identity fields are fixed at creation;
// the Range fields widen while the construct is still being scanned.
type Token struct {
	ID       TokenID
	FileID   int
	Filename string
	Style    Style

	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int

	RangeStartLine   int
	RangeStartColumn int
	RangeEndLine     int
	RangeEndColumn   int

	Name        string
	NameLower   string
	Description string

	Parent    TokenID
	InSection TokenID

	ExtraInformation1 string

	InProcedureDivision             bool
	IgnoreInOutlineView             bool
	IsImplicit                      bool
	IsFromScanCommentsForReferences bool
}

// ContainsLine reports whether line falls inside the token's range.
func (t *Token) ContainsLine(line int) bool {
	return line >= t.RangeStartLine && line <= t.RangeEndLine
}

// Variable is one definition of a data name. A name may have several.
type Variable struct {
	Token               TokenID
	Style               Style
	IgnoreInOutlineView bool
}

// SourceReference is one occurrence of a name. Whether it is the definition
// or a usage depends only on its position.
type SourceReference struct {
	FileID         int
	Line           int
	Column         int
	Length         int
	Style          Style
	IsFromComments bool
	Name           string
	Reason         string
}

// SourceRange is a span used for ignored regions and SQL cursor usages.
type SourceRange struct {
	FileID    int
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Style     Style
}

// Parameter is one USING or RETURNING item.
type Parameter struct {
	Using UsingState
	Name  string
}

// CallTarget is a program, entry point or function that can be called.
type CallTarget struct {
	OriginalToken  string
	Token          TokenID
	IsEntryPoint   bool
	CallParameters []Parameter
}

// SQLDeclare is a cursor declared inside EXEC SQL.
type SQLDeclare struct {
	Token      TokenID
	Line       int
	References []SourceRange
}

// CopybookUse records one COPY (or EXEC SQL INCLUDE) of a resolved file.
type CopybookUse struct {
	Token        TokenID
	ScanComplete bool
	Info         *CopybookInfo
}

// Diagnostic codes.
const (
	CodeMissingCopybook   = "COBOL-MISSING-COPYBOOK"
	CodeRecursiveCopybook = "COBOL-RECURSIVE-COPYBOOK"
	CodeMalformedUsing    = "COBOL-MALFORMED-USING"
	CodePort              = "COBOL-PORT"
	CodeLSIgnore          = "COBOL-LS-IGNORE"
	CodeScanAborted       = "COBOL-SCAN-ABORTED"
	CodeCommentHint       = "COBOL-COMMENT-HINT"
)

// Diagnostic is a positioned, non-fatal warning.
type Diagnostic struct {
	File    string
	Line    int
	Message string
	Code    string
	// Replacement is the suggested line for port diagnostics.
	Replacement string
}

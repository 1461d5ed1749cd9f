package scanner

// Style classifies a Token. The set is closed; consumers switch on it.
type Style int

const (
	StyleNull Style = iota
	StyleCopyBook
	StyleCopyBookInOrOf
	StyleFile
	StyleProgramID
	StyleImplicitProgramID
	StyleFunctionID
	StyleEndFunctionID
	StyleConstructor
	StyleMethodID
	StyleProperty
	StyleClassID
	StyleInterfaceID
	StyleValueTypeID
	StyleEnumID
	StyleSection
	StyleParagraph
	StyleDivision
	StyleEntryPoint
	StyleVariable
	StyleConditionName
	StyleRenameLevel
	StyleConstant
	StyleUnion
	StyleEndDelimiter
	StyleExec
	StyleEndExec
	StyleDeclaratives
	StyleEndDeclaratives
	StyleRegion
	StyleSQLCursor
	StyleUnknown
	StyleIgnoreLS
)

func (s Style) String() string {
	switch s {
	case StyleNull:
		return "Null"
	case StyleCopyBook:
		return "Copybook"
	case StyleCopyBookInOrOf:
		return "CopybookInOrOf"
	case StyleFile:
		return "File"
	case StyleProgramID:
		return "Program-Id"
	case StyleImplicitProgramID:
		return "ImplicitProgramId-Id"
	case StyleFunctionID:
		return "Function-Id"
	case StyleEndFunctionID:
		return "EndFunctionId"
	case StyleConstructor:
		return "Constructor"
	case StyleMethodID:
		return "Method-Id"
	case StyleProperty:
		return "Property"
	case StyleClassID:
		return "Class-Id"
	case StyleInterfaceID:
		return "Interface-Id"
	case StyleValueTypeID:
		return "Valuetype-Id"
	case StyleEnumID:
		return "Enum-id"
	case StyleSection:
		return "Section"
	case StyleParagraph:
		return "Paragraph"
	case StyleDivision:
		return "Division"
	case StyleEntryPoint:
		return "Entry"
	case StyleVariable:
		return "Variable"
	case StyleConditionName:
		return "ConditionName"
	case StyleRenameLevel:
		return "RenameLevel"
	case StyleConstant:
		return "Constant"
	case StyleUnion:
		return "Union"
	case StyleEndDelimiter:
		return "EndDelimiter"
	case StyleExec:
		return "Exec"
	case StyleEndExec:
		return "EndExec"
	case StyleDeclaratives:
		return "Declaratives"
	case StyleEndDeclaratives:
		return "EndDeclaratives"
	case StyleRegion:
		return "Region"
	case StyleSQLCursor:
		return "SQLCursor"
	case StyleUnknown:
		return "Unknown"
	case StyleIgnoreLS:
		return "IgnoreLS"
	}
	return "Style(?)"
}

// IsDataItem reports whether tokens of this style name storage.
func (s Style) IsDataItem() bool {
	switch s {
	case StyleVariable, StyleConditionName, StyleConstant, StyleUnion, StyleRenameLevel:
		return true
	}
	return false
}

// IsLabel reports whether tokens of this style can be the target of PERFORM or GO TO.
func (s Style) IsLabel() bool {
	return s == StyleSection || s == StyleParagraph
}

// Format is the column layout of a COBOL source.
type Format int

const (
	FormatUnknown Format = iota
	FormatFixed
	FormatVariable
	FormatFree
	FormatTerminal
)

func (f Format) String() string {
	switch f {
	case FormatFixed:
		return "fixed"
	case FormatVariable:
		return "variable"
	case FormatFree:
		return "free"
	case FormatTerminal:
		return "terminal"
	}
	return "unknown"
}

// ParseFormat maps a lower-case format name to a Format.
func ParseFormat(name string) (Format, bool) {
	switch name {
	case "fixed":
		return FormatFixed, true
	case "variable":
		return FormatVariable, true
	case "free":
		return FormatFree, true
	case "terminal":
		return FormatTerminal, true
	}
	return FormatUnknown, false
}

// UsingState tracks the passing mode of USING/RETURNING parameters.
type UsingState int

const (
	UsingByValue UsingState = iota
	UsingByReference
	UsingByContent
	UsingByOutput
	UsingReturning
	UsingUnknown
)

func (u UsingState) String() string {
	switch u {
	case UsingByValue:
		return "BY VALUE"
	case UsingByReference:
		return "BY REFERENCE"
	case UsingByContent:
		return "BY CONTENT"
	case UsingByOutput:
		return "BY OUTPUT"
	case UsingReturning:
		return "RETURNING"
	}
	return "UNKNOWN"
}

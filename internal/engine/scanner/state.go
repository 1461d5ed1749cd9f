package scanner

// ParseState is the cursor of one top-level scan. Nested copybook scans
// share it and restore the fields listed in savedState.
type ParseState struct {
	CurrentDivision   TokenID
	CurrentSection    TokenID
	CurrentParagraph  TokenID
	CurrentClass      TokenID
	CurrentMethod     TokenID
	CurrentFunctionID TokenID
	Current01Group    TokenID
	CurrentLevel      TokenID
	ProcedureDivision TokenID
	Declaratives      TokenID
	// CurrentExec is the open EXEC block, if any.
	CurrentExec TokenID

	CurrentProgramTarget *CallTarget
	Programs             []TokenID

	CaptureDivisions    bool
	PickFields          bool
	PickUpUsing         bool
	SkipToDot           bool
	SkipNextToken       bool
	EndsWithDot         bool
	PrevEndsWithDot     bool
	InValueClause       bool
	InProcedureDivision bool
	InDeclaratives      bool
	InReplace           bool
	InCopy              bool
	SkipToEndLsIgnore   bool
	IgnoreInOutlineView bool
	RestorePrevState    bool

	CurrentLineIsComment bool

	addReferencesDuringSkipToTag bool
	addVariableDuringSkipToTag   bool

	Using           UsingState
	Parameters      []Parameter
	EntryPointCount int

	ReplaceMap     *ReplaceMap
	replaceCapture replacingCapture
	replaceEnabled bool

	Copybook          *CopybookInfo
	InCopyStartColumn int

	// processed marks files already scanned in this run.
	processed map[string]struct{}
}

func newParseState(settings Settings) *ParseState {
	return &ParseState{
		CurrentDivision:      NoToken,
		CurrentSection:       NoToken,
		CurrentParagraph:     NoToken,
		CurrentClass:         NoToken,
		CurrentMethod:        NoToken,
		CurrentFunctionID:    NoToken,
		Current01Group:       NoToken,
		CurrentLevel:         NoToken,
		ProcedureDivision:    NoToken,
		Declaratives:         NoToken,
		CurrentExec:          NoToken,
		CurrentProgramTarget: &CallTarget{Token: NoToken},
		CaptureDivisions:     true,
		Using:                UsingByReference,
		ReplaceMap:           NewReplaceMap(),
		replaceEnabled:       settings.EnableTextReplacement,
		Copybook:             newCopybookInfo(NoToken, nil),
		processed:            make(map[string]struct{}),
	}
}

// CopybookInfo is one COPY or EXEC SQL INCLUDE statement and the result of
// resolving it.
type CopybookInfo struct {
	Verb        string
	Name        string
	TrimmedName string

	IsIn bool
	IsOf bool
	// InLibrary is the literal after IN, OfLibrary the name after OF.
	InLibrary string
	OfLibrary string

	Replacing   *ReplaceMap
	isReplacing bool
	capture     replacingCapture

	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Line        string

	FileName    string
	FileModTime int64

	Saved01Group TokenID
	depths       *copybookStack
}

func newCopybookInfo(saved01Group TokenID, depths *copybookStack) *CopybookInfo {
	if depths == nil {
		depths = &copybookStack{}
	}
	return &CopybookInfo{
		Replacing:    NewReplaceMap(),
		Saved01Group: saved01Group,
		depths:       depths,
	}
}

// Library returns the IN or OF qualifier with quotes removed.
func (c *CopybookInfo) Library() string {
	return trimLiteral(c.OfLibrary, true) + trimLiteral(c.InLibrary, true)
}

// Depth is the number of copybooks open when this one was processed.
func (c *CopybookInfo) Depth() int { return c.depths.len() }

// copybookStack is the inclusion chain shared by every CopybookInfo of one
// top-level scan.
type copybookStack struct {
	items []*CopybookInfo
}

func (s *copybookStack) push(c *CopybookInfo) { s.items = append(s.items, c) }

func (s *copybookStack) pop() {
	if n := len(s.items); n != 0 {
		s.items = s.items[:n-1]
	}
}

func (s *copybookStack) len() int { return len(s.items) }

// count returns how many open copybooks resolved to fileName.
func (s *copybookStack) count(fileName string) int {
	n := 0
	for _, c := range s.items {
		if c.FileName == fileName {
			n++
		}
	}
	return n
}

// savedState is the part of ParseState a nested scan must give back.
type savedState struct {
	ignoreInOutlineView bool
	endsWithDot         bool
	prevEndsWithDot     bool
	currentDivision     TokenID
	currentSection      TokenID
	procedureDivision   TokenID
	pickFields          bool
	skipToDot           bool
}

func (p *ParseState) save() savedState {
	return savedState{
		ignoreInOutlineView: p.IgnoreInOutlineView,
		endsWithDot:         p.EndsWithDot,
		prevEndsWithDot:     p.PrevEndsWithDot,
		currentDivision:     p.CurrentDivision,
		currentSection:      p.CurrentSection,
		procedureDivision:   p.ProcedureDivision,
		pickFields:          p.PickFields,
		skipToDot:           p.SkipToDot,
	}
}

// restore gives back the saved fields. Scope pointers are only restored when
// the nested scan did not open a division of its own.
func (p *ParseState) restore(s savedState, saved01Group TokenID) {
	if p.Current01Group == NoToken {
		p.Current01Group = saved01Group
	}
	p.IgnoreInOutlineView = s.ignoreInOutlineView
	p.EndsWithDot = s.endsWithDot
	p.PickFields = s.pickFields
	p.SkipToDot = s.skipToDot
	if p.RestorePrevState {
		p.CurrentDivision = s.currentDivision
		p.CurrentSection = s.currentSection
		p.ProcedureDivision = s.procedureDivision
		p.PrevEndsWithDot = s.prevEndsWithDot
	}
}

package scanner

import (
	"context"
	"os"
	"regexp"
	"strings"
	"testing"

	cerrors "cobolscan/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed lays out code lines from column 8 and comment lines from column 7.
func fixed(lines ...string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.HasPrefix(l, "*") {
			out[i] = "      " + l
		} else {
			out[i] = "       " + l
		}
	}
	return strings.Join(out, "\n")
}

type mapResolver map[string]string

func (m mapResolver) Resolve(name, _, _ string) string { return m[strings.ToUpper(name)] }
func (m mapResolver) ModTime(string) int64           { return 1 }

func memOpen(files map[string]string) OpenFunc {
	return func(path string, _ *regexp.Regexp) (LineSource, error) {
		text, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return NewMemorySource(path, text, 1), nil
	}
}

// workspace is a set of in-memory copybooks keyed by logical name.
type workspace map[string]string

func (w workspace) options() Options {
	resolver := make(mapResolver)
	files := make(map[string]string)
	for name, text := range w {
		path := "copy/" + name + ".cpy"
		resolver[name] = path
		files[path] = text
	}
	return Options{Settings: DefaultSettings(), Resolver: resolver, Open: memOpen(files)}
}

func scanText(t *testing.T, name, text string, opts Options) *Scanner {
	t.Helper()
	sc := New(NewMemorySource(name, text, 1), opts)
	require.NoError(t, sc.Scan(context.Background()))
	return sc
}

func tokensWithStyle(sc *Scanner, style Style) []*Token {
	var out []*Token
	for _, tok := range sc.Tokens() {
		if tok.Style == style {
			out = append(out, tok)
		}
	}
	return out
}

func diagnosticsWithCode(diags []Diagnostic, code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

var fooBar = fixed(
	"IDENTIFICATION DIVISION.",
	"PROGRAM-ID. FOO.",
	"PROCEDURE DIVISION.",
	"PERFORM BAR.",
	"BAR.",
	"    DISPLAY \"HI\".",
)

func TestScan_ProgramAndParagraphReference(t *testing.T) {
	sc := scanText(t, "foo.cbl", fooBar, workspace{}.options())
	refs := sc.References()

	programs := tokensWithStyle(sc, StyleProgramID)
	require.Len(t, programs, 1)
	assert.Equal(t, "FOO", programs[0].Name)
	assert.Equal(t, "FOO", sc.ProgramID)
	assert.Contains(t, sc.CallTargets, "FOO")
	assert.Equal(t, FormatFixed, sc.Format)

	id, ok := refs.Paragraphs["bar"]
	require.True(t, ok, "paragraph bar not registered")
	bar := sc.Token(id)
	require.NotNil(t, bar)
	assert.Equal(t, StyleParagraph, bar.Style)
	assert.Equal(t, 4, bar.StartLine)

	var perform *SourceReference
	for i, ref := range refs.TargetReferences["bar"] {
		if ref.Line == 3 {
			perform = &refs.TargetReferences["bar"][i]
		}
	}
	require.NotNil(t, perform, "PERFORM BAR usage missing")
	assert.Equal(t, "perform", perform.Reason)
	assert.Equal(t, StyleParagraph, perform.Style)

	defined, used := refs.TargetReferenceCounts("bar", bar.FileID, bar.StartLine, bar.StartColumn)
	assert.Equal(t, 1, defined)
	assert.Equal(t, 1, used)
	assert.Empty(t, refs.UnknownReferences)
	assert.Empty(t, sc.Diagnostics())
}

func TestScan_Idempotent(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. IDEM.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"01 WS-GROUP.",
		"   05 WS-A PIC 9(4).",
		"   05 WS-B PIC X(10).",
		"   88 WS-B-EMPTY VALUE SPACES.",
		"COPY CUSTREC.",
		"PROCEDURE DIVISION.",
		"MAIN-PARA.",
		"    MOVE 1 TO WS-A",
		"    PERFORM LATER-PARA",
		"    STOP RUN.",
		"LATER-PARA.",
		"    DISPLAY WS-B CUST-ID.",
	)
	ws := workspace{"CUSTREC": fixed("01 CUST-ID PIC 9(5).")}

	first := scanText(t, "idem.cbl", text, ws.options())
	second := scanText(t, "idem.cbl", text, ws.options())

	assert.Equal(t, first.Tokens(), second.Tokens())
	r1, r2 := first.References(), second.References()
	assert.Equal(t, r1.ConstantsOrVariables, r2.ConstantsOrVariables)
	assert.Equal(t, r1.Sections, r2.Sections)
	assert.Equal(t, r1.Paragraphs, r2.Paragraphs)
	assert.Equal(t, r1.TargetReferences, r2.TargetReferences)
	assert.Equal(t, r1.ConstantsOrVariablesReferences, r2.ConstantsOrVariablesReferences)
	assert.Equal(t, first.Diagnostics(), second.Diagnostics())
}

func TestScan_CopybookDefinitionsBelongToCopybook(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. MAIN.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY CUSTREC.",
		"PROCEDURE DIVISION.",
		"    MOVE 1 TO CUST-ID.",
	)
	ws := workspace{"CUSTREC": fixed("01 CUST-ID.")}
	sc := scanText(t, "main.cbl", text, ws.options())
	refs := sc.References()

	vars, ok := refs.ConstantsOrVariables["cust-id"]
	require.True(t, ok, "cust-id not defined")
	require.Len(t, vars, 1)
	def := sc.Token(vars[0].Token)
	require.NotNil(t, def)
	assert.Equal(t, "copy/CUSTREC.cpy", def.Filename)
	assert.Equal(t, refs.FileID("copy/CUSTREC.cpy"), def.FileID)
	assert.NotEqual(t, sc.FileID, def.FileID)

	copies := tokensWithStyle(sc, StyleCopyBook)
	require.Len(t, copies, 1)
	assert.Equal(t, "CUSTREC", copies[0].Name)
	uses := refs.CopyBooksUsed["copy/CUSTREC.cpy"]
	require.Len(t, uses, 1)
	assert.True(t, uses[0].ScanComplete)

	// the usage in the including file resolves to the copybook definition
	found := false
	for _, ref := range refs.ConstantsOrVariablesReferences["cust-id"] {
		if ref.FileID == sc.FileID && ref.Line == 6 {
			found = true
		}
	}
	assert.True(t, found, "usage of cust-id not resolved")
}

func TestScan_CopybookCycle(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. CYCLE.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY BOOKA.",
	)
	ws := workspace{
		"BOOKA": fixed("01 A-FIELD PIC X.", "COPY BOOKB."),
		"BOOKB": fixed("01 B-FIELD PIC X.", "COPY BOOKA."),
	}
	sc := scanText(t, "cycle.cbl", text, ws.options())

	recursion := diagnosticsWithCode(sc.GeneralWarnings(), CodeRecursiveCopybook)
	assert.Len(t, recursion, 1)
	assert.Contains(t, sc.References().ConstantsOrVariables, "a-field")
	assert.Contains(t, sc.References().ConstantsOrVariables, "b-field")
	assert.False(t, sc.ScanAborted)
}

func TestScan_CopyReplacing(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. REPL.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY RECTPL REPLACING ==:PFX:== BY ==CUST==.",
		"01 :PFX:-OUTSIDE PIC X.",
	)
	ws := workspace{"RECTPL": fixed("01 :PFX:-ID PIC 9.")}
	sc := scanText(t, "repl.cbl", text, ws.options())
	vars := sc.References().ConstantsOrVariables

	assert.Contains(t, vars, "cust-id")
	assert.NotContains(t, vars, ":pfx:-id")
	// the replacement only applies inside the copybook
	assert.Equal(t, 0, sc.state().ReplaceMap.Len())
}

func TestScan_ReplaceStatement(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. REPL.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"REPLACE ==WS-OLD== BY ==WS-NEW==.",
		"01 WS-OLD PIC X.",
		"REPLACE OFF.",
		"01 WS-LAST PIC X.",
	)
	sc := scanText(t, "replace.cbl", text, workspace{}.options())
	vars := sc.References().ConstantsOrVariables

	require.Contains(t, vars, "ws-new")
	assert.NotContains(t, vars, "ws-old")
	assert.Contains(t, vars, "ws-last")

	tok := sc.Token(vars["ws-new"][0].Token)
	require.NotNil(t, tok)
	assert.Equal(t, 5, tok.StartLine)
	// the range points back at the original text
	assert.Equal(t, 7, tok.RangeStartColumn)
}

func TestScan_MissingCopybookReportedOnce(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. MISS.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY NOWHERE.",
		"COPY NOWHERE.",
	)
	sc := scanText(t, "miss.cbl", text, workspace{}.options())
	missing := sc.MissingCopybooks()
	require.Len(t, missing, 1)
	assert.Equal(t, CodeMissingCopybook, missing[0].Code)
	assert.Equal(t, "Unable to locate copybook NOWHERE", missing[0].Message)
	assert.Equal(t, 4, missing[0].Line)

	opts := workspace{}.options()
	opts.Settings.LinterIgnoreMissingCopybook = true
	sc = scanText(t, "miss.cbl", text, opts)
	assert.Empty(t, sc.MissingCopybooks())
}

func TestScan_ScopeNesting(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. NEST.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"01 WS-X PIC X.",
		"PROCEDURE DIVISION.",
		"MAIN-SECTION SECTION.",
		"START-UP.",
		"    PERFORM WORK-PARA.",
		"WORK-PARA.",
		"    DISPLAY WS-X.",
		"OTHER-SECTION SECTION.",
		"LAST-PARA.",
		"    STOP RUN.",
	)
	sc := scanText(t, "nest.cbl", text, workspace{}.options())
	refs := sc.References()

	paragraphs := tokensWithStyle(sc, StyleParagraph)
	require.NotEmpty(t, paragraphs)
	for _, p := range paragraphs {
		if p.InSection == NoToken {
			continue
		}
		sec := sc.Token(p.InSection)
		require.NotNil(t, sec)
		assert.Equal(t, StyleSection, sec.Style, "paragraph %s", p.Name)
		assert.True(t, sec.ContainsLine(p.StartLine), "section %s does not hold paragraph %s", sec.Name, p.Name)
	}

	last := sc.Token(refs.Paragraphs["last-para"])
	require.NotNil(t, last)
	assert.Equal(t, refs.Sections["other-section"], last.InSection)

	// the storage section is closed before the procedure division opens
	ws := sc.Token(refs.Sections["working-storage"])
	require.NotNil(t, ws)
	var procedure *Token
	for _, d := range tokensWithStyle(sc, StyleDivision) {
		if d.NameLower == "procedure" {
			procedure = d
		}
	}
	require.NotNil(t, procedure)
	assert.LessOrEqual(t, ws.RangeEndLine, procedure.StartLine)

	id, ok := sc.FindNearestSectionOrParagraph(9)
	require.True(t, ok)
	assert.Equal(t, refs.Paragraphs["work-para"], id)
	id, ok = sc.FindNearestSectionOrParagraph(10)
	require.True(t, ok)
	assert.Equal(t, refs.Sections["main-section"], id)
}

func TestScan_UnknownReferencesResolved(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. FWD.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"01 WS-COUNT PIC 9(4).",
		"PROCEDURE DIVISION.",
		"    MOVE 1 TO WS-COUNT",
		"    GO TO FINISH-UP.",
		"FINISH-UP.",
		"    STOP RUN.",
	)
	sc := scanText(t, "fwd.cbl", text, workspace{}.options())
	refs := sc.References()

	assert.Empty(t, refs.UnknownReferences)

	var moved bool
	for _, ref := range refs.ConstantsOrVariablesReferences["ws-count"] {
		if ref.Line == 6 {
			moved = true
			assert.Equal(t, StyleVariable, ref.Style)
		}
	}
	assert.True(t, moved, "MOVE target not resolved to the variable")
	assert.NotContains(t, refs.TargetReferences, "ws-count")

	var jumped bool
	for _, ref := range refs.TargetReferences["finish-up"] {
		if ref.Line == 7 {
			jumped = true
			assert.Equal(t, StyleParagraph, ref.Style)
		}
	}
	assert.True(t, jumped, "GO TO target not resolved to the paragraph")

	// no occurrence lives in both maps
	for name, targets := range refs.TargetReferences {
		for _, tr := range targets {
			for _, vr := range refs.ConstantsOrVariablesReferences[name] {
				assert.False(t, tr.Line == vr.Line && tr.Column == vr.Column && tr.FileID == vr.FileID,
					"%s at %d:%d is in both maps", name, tr.Line, tr.Column)
			}
		}
	}
}

func TestScan_DataItems(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. DATA1.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"01 WS-REC.",
		"   05 WS-CODE PIC X.",
		"      88 WS-CODE-OK VALUE 'Y'.",
		"01 WS-ALT REDEFINES WS-REC PIC X(2).",
		"78 MAX-ITEMS VALUE 10.",
		"66 WS-RN RENAMES WS-CODE.",
	)
	sc := scanText(t, "data.cbl", text, workspace{}.options())
	vars := sc.References().ConstantsOrVariables

	styleOf := func(name string) Style {
		t.Helper()
		require.Contains(t, vars, name)
		return vars[name][0].Style
	}
	assert.Equal(t, StyleVariable, styleOf("ws-rec"))
	assert.Equal(t, StyleVariable, styleOf("ws-code"))
	assert.Equal(t, StyleConditionName, styleOf("ws-code-ok"))
	assert.Equal(t, StyleUnion, styleOf("ws-alt"))
	assert.Equal(t, StyleConstant, styleOf("max-items"))
	assert.Equal(t, StyleRenameLevel, styleOf("ws-rn"))

	group := sc.Token(vars["ws-rec"][0].Token)
	require.NotNil(t, group)
	assert.Equal(t, "01-GROUP", group.ExtraInformation1)
	assert.GreaterOrEqual(t, group.RangeEndLine, 6)

	cond := sc.Token(vars["ws-code-ok"][0].Token)
	require.NotNil(t, cond)
	assert.Equal(t, vars["ws-code"][0].Token, cond.Parent)
	assert.Equal(t, sc.Token(vars["ws-code"][0].Token).Parent, sc.Token(vars["max-items"][0].Token).Parent)
}

func TestScan_UsingParameters(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. CALLEE.",
		"DATA DIVISION.",
		"LINKAGE SECTION.",
		"01 LK-A PIC X.",
		"01 LK-B PIC X.",
		"PROCEDURE DIVISION USING LK-A BY VALUE LK-B.",
		"    GOBACK.",
	)
	sc := scanText(t, "callee.cbl", text, workspace{}.options())

	target, ok := sc.CallTargets["CALLEE"]
	require.True(t, ok)
	assert.Equal(t, []Parameter{
		{Using: UsingByReference, Name: "LK-A"},
		{Using: UsingByValue, Name: "LK-B"},
	}, target.CallParameters)
	assert.Empty(t, diagnosticsWithCode(sc.GeneralWarnings(), CodeMalformedUsing))
}

func TestScan_MalformedUsing(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. BROKEN.",
		"PROCEDURE DIVISION USING LK-A",
		"    DISPLAY LK-A.",
	)
	sc := scanText(t, "broken.cbl", text, workspace{}.options())
	warnings := diagnosticsWithCode(sc.GeneralWarnings(), CodeMalformedUsing)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "DISPLAY")

	opts := workspace{}.options()
	opts.Settings.LinterIgnoreMalformedUsing = true
	sc = scanText(t, "broken.cbl", text, opts)
	assert.Empty(t, diagnosticsWithCode(sc.GeneralWarnings(), CodeMalformedUsing))
}

func TestScan_ObjectOriented(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"CLASS-ID. Account.",
		"METHOD-ID. NEW.",
		"END METHOD.",
		"METHOD-ID. Deposit.",
		"END METHOD.",
		"END CLASS Account.",
	)
	sc := scanText(t, "account.cbl", text, workspace{}.options())

	require.Contains(t, sc.Classes, "Account")
	cls := sc.Token(sc.Classes["Account"])
	assert.Equal(t, StyleClassID, cls.Style)
	assert.Equal(t, 6, cls.RangeEndLine)

	require.Contains(t, sc.Methods, "NEW")
	assert.Equal(t, StyleConstructor, sc.Token(sc.Methods["NEW"]).Style)
	require.Contains(t, sc.Methods, "Deposit")
	deposit := sc.Token(sc.Methods["Deposit"])
	assert.Equal(t, StyleMethodID, deposit.Style)
	assert.Equal(t, 5, deposit.RangeEndLine)
}

func TestScan_ExecSQLCursor(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. SQLPROG.",
		"PROCEDURE DIVISION.",
		"    EXEC SQL DECLARE C1 CURSOR FOR SELECT X FROM T END-EXEC.",
		"    EXEC SQL OPEN C1 END-EXEC.",
		"    STOP RUN.",
	)
	sc := scanText(t, "sql.cbl", text, workspace{}.options())

	execs := tokensWithStyle(sc, StyleExec)
	require.Len(t, execs, 2)
	assert.Equal(t, "EXEC SQL DECLARE", execs[0].Description)

	decl, ok := sc.References().ExecSQLDeclare["c1"]
	require.True(t, ok)
	assert.Equal(t, 3, decl.Line)
	require.Len(t, decl.References, 2)
	assert.Equal(t, 4, decl.References[1].Line)
	assert.Equal(t, StyleSQLCursor, decl.References[1].Style)
}

func TestScan_ImplicitProgramForCopybookSource(t *testing.T) {
	text := fixed(
		"01 CUST-REC.",
		"   05 CUST-ID PIC 9(5).",
		"   05 CUST-NAME PIC X(20).",
	)
	sc := scanText(t, "custrec.cpy", text, workspace{}.options())

	assert.True(t, sc.SourceIsCopybook)
	assert.True(t, sc.LooksLikeCOBOL)
	assert.Contains(t, sc.References().ConstantsOrVariables, "cust-name")
	assert.Empty(t, tokensWithStyle(sc, StyleImplicitProgramID))
}

func TestScan_ImplicitProgramID(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROCEDURE DIVISION.",
		"    DISPLAY 'X'.",
	)
	sc := scanText(t, "dir/noname.cbl", text, workspace{}.options())

	target, ok := sc.CallTargets["noname"]
	require.True(t, ok)
	tok := sc.Token(target.Token)
	require.NotNil(t, tok)
	assert.Equal(t, StyleImplicitProgramID, tok.Style)
	assert.Equal(t, 2, tok.RangeEndLine)
	// the implicit program is not part of the ordered stream
	assert.Empty(t, tokensWithStyle(sc, StyleImplicitProgramID))
}

func TestScan_StorageSectionWithoutDivision(t *testing.T) {
	text := fixed(
		"WORKING-STORAGE SECTION.",
		"01 WS-X PIC X.",
		"PROCEDURE DIVISION.",
		"    DISPLAY WS-X.",
	)
	sc := scanText(t, "dir/noname.cbl", text, workspace{}.options())

	programs := tokensWithStyle(sc, StyleProgramID)
	require.Len(t, programs, 1)
	assert.Equal(t, "noname", programs[0].Name)
	assert.True(t, programs[0].IsImplicit)
	assert.NotContains(t, sc.CallTargets, "noname")

	var data *Token
	for _, d := range tokensWithStyle(sc, StyleDivision) {
		if d.Name == "Data" {
			data = d
		}
	}
	require.NotNil(t, data, "implied data division missing")
	assert.True(t, data.IgnoreInOutlineView)
	assert.Contains(t, sc.References().ConstantsOrVariables, "ws-x")
}

func TestScan_AbortOnLongLine(t *testing.T) {
	opts := workspace{}.options()
	opts.Settings.MaxLineLength = 40
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. LONG.",
		"PROCEDURE DIVISION.",
		"    DISPLAY '"+strings.Repeat("X", 60)+"'.",
	)
	sc := New(NewMemorySource("long.cbl", text, 1), opts)
	err := sc.Scan(context.Background())

	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeScanAborted))
	assert.True(t, sc.ScanAborted)
	assert.Empty(t, sc.Tokens())
	assert.Len(t, diagnosticsWithCode(sc.GeneralWarnings(), CodeScanAborted), 1)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := New(NewMemorySource("foo.cbl", fooBar, 1), workspace{}.options())
	err := sc.Scan(ctx)

	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeScanAborted))
	assert.True(t, sc.ScanAborted)
	assert.Empty(t, sc.References().Paragraphs)
}

func TestScan_NotCOBOL(t *testing.T) {
	sc := scanText(t, "README", "just some text\nwith no structure", workspace{}.options())
	assert.False(t, sc.LooksLikeCOBOL)
	assert.Empty(t, sc.Tokens())
}

func TestScan_Events(t *testing.T) {
	ev := &recordingEvents{}
	opts := workspace{"CUSTREC": fixed("01 CUST-ID.")}.options()
	opts.Events = ev
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. EV.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY CUSTREC.",
	)
	scanText(t, "ev.cbl", text, opts)

	assert.Equal(t, 1, ev.started)
	assert.Equal(t, 1, ev.finished)
	assert.Contains(t, ev.names, "EV")
	assert.Contains(t, ev.names, "CUST-ID")
}

type recordingEvents struct {
	started  int
	finished int
	names    []string
}

func (r *recordingEvents) Start(*Scanner)  { r.started++ }
func (r *recordingEvents) Finish(*Scanner) { r.finished++ }
func (r *recordingEvents) ProcessToken(_ *Scanner, tok *Token) {
	r.names = append(r.names, tok.Name)
}

func TestRuleNames_Order(t *testing.T) {
	want := []string{
		"using", "skip-to-dot", "exec", "region", "end-declaratives", "replace",
		"section", "division", "entry", "program-id", "class-id", "end-class",
		"type-id", "function-id", "method-id", "end-method", "end-program",
		"end-function", "declaratives", "copy", "paragraph", "file-sections",
		"data-item", "references",
	}
	assert.Equal(t, want, RuleNames())
}

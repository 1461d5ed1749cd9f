package symbols

import (
	"context"
	"os"
	"regexp"
	"strings"
	"testing"

	"cobolscan/internal/engine/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(lines ...string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "       " + l
	}
	return strings.Join(out, "\n")
}

type mapResolver map[string]string

func (m mapResolver) Resolve(name, _, _ string) string { return m[strings.ToUpper(name)] }
func (m mapResolver) ModTime(string) int64           { return 7 }

// scanOptions serves every copybook from copy/<NAME>.cpy in memory.
func scanOptions(copybooks map[string]string, events scanner.Events) scanner.Options {
	resolver := make(mapResolver)
	files := make(map[string]string)
	for name, text := range copybooks {
		path := "copy/" + name + ".cpy"
		resolver[name] = path
		files[path] = text
	}
	return scanner.Options{
		Settings: scanner.DefaultSettings(),
		Resolver: resolver,
		Events:   events,
		Open: func(path string, _ *regexp.Regexp) (scanner.LineSource, error) {
			text, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return scanner.NewMemorySource(path, text, 7), nil
		},
	}
}

func scan(t *testing.T, name, text string, opts scanner.Options) *scanner.Scanner {
	t.Helper()
	sc := scanner.New(scanner.NewMemorySource(name, text, 100), opts)
	require.NoError(t, sc.Scan(context.Background()))
	return sc
}

var payroll = fixed(
	"IDENTIFICATION DIVISION.",
	"PROGRAM-ID. PAYROLL.",
	"DATA DIVISION.",
	"WORKING-STORAGE SECTION.",
	"01 WS-TOTAL PIC 9(6).",
	"01 WS-FLAG PIC X.",
	"   88 WS-DONE VALUE 'Y'.",
	"COPY EMPREC.",
	"PROCEDURE DIVISION.",
	"MAIN-PARA.",
	"    MOVE 0 TO WS-TOTAL",
	"    PERFORM CALC-PARA",
	"    STOP RUN.",
	"CALC-PARA.",
	"    ADD 1 TO WS-TOTAL.",
)

var empRec = map[string]string{"EMPREC": fixed("01 EMP-ID PIC 9(5).")}

func TestProject_CollectsDataNamesAndLabels(t *testing.T) {
	sc := scan(t, "src/payroll.cbl", payroll, scanOptions(empRec, nil))
	table := Project(sc)

	assert.Equal(t, "src/payroll.cbl", table.Filename)
	assert.Equal(t, int64(100), table.ModTime)
	require.Contains(t, table.VariableSymbols, "ws-total")
	assert.Equal(t, Symbol{Name: "WS-TOTAL", Line: 4}, table.VariableSymbols["ws-total"])
	assert.Contains(t, table.VariableSymbols, "ws-done")
	require.Contains(t, table.LabelSymbols, "calc-para")
	assert.Equal(t, 13, table.LabelSymbols["calc-para"].Line)
	assert.Contains(t, table.LabelSymbols, "main-para")
	assert.NotContains(t, table.VariableSymbols, "payroll")
}

func TestSymbolTable_LastDefinitionWins(t *testing.T) {
	table := NewSymbolTable("a.cbl", 1)
	table.Add(&scanner.Token{Style: scanner.StyleVariable, Name: "X", NameLower: "x", StartLine: 3})
	table.Add(&scanner.Token{Style: scanner.StyleVariable, Name: "X", NameLower: "x", StartLine: 9})
	table.Add(&scanner.Token{Style: scanner.StyleVariable, Name: "H", NameLower: "h", StartLine: 2, IgnoreInOutlineView: true})
	table.Add(nil)

	assert.Equal(t, 9, table.VariableSymbols["x"].Line)
	assert.NotContains(t, table.VariableSymbols, "h")
}

func TestBuild_FileSymbols(t *testing.T) {
	sc := scan(t, "src/payroll.cbl", payroll, scanOptions(empRec, nil))
	f := Build(sc, nil)

	assert.Equal(t, "src/payroll.cbl", f.Path)
	assert.Equal(t, int64(100), f.ModTime)
	assert.Equal(t, "PAYROLL", f.ProgramID)
	assert.False(t, f.Aborted)
	require.NotNil(t, f.Table)
	assert.Contains(t, f.Table.LabelSymbols, "calc-para")

	require.Len(t, f.Callables, 1)
	assert.Equal(t, Symbol{Name: "PAYROLL", Line: 1}, f.Callables[0])

	require.Len(t, f.Copybooks, 1)
	assert.Equal(t, CopybookDep{Path: "copy/EMPREC.cpy", ModTime: 7}, f.Copybooks[0])
	assert.Equal(t, []string{"copy/EMPREC.cpy"}, f.CopybookPaths())

	var perform *Reference
	for i, r := range f.References {
		if r.Name == "calc-para" && r.Kind == RefTarget && r.Line == 11 {
			perform = &f.References[i]
		}
	}
	require.NotNil(t, perform, "PERFORM CALC-PARA not recorded")
	assert.Equal(t, "src/payroll.cbl", perform.File)
	assert.Equal(t, "perform", perform.Reason)

	for i := 1; i < len(f.References); i++ {
		prev, cur := f.References[i-1], f.References[i]
		if prev.Kind == cur.Kind {
			assert.LessOrEqual(t, prev.Name, cur.Name)
		}
	}
}

func TestBuild_ImplicitProgramIsCallable(t *testing.T) {
	text := fixed(
		"IDENTIFICATION DIVISION.",
		"PROCEDURE DIVISION.",
		"    DISPLAY 'X'.",
	)
	sc := scan(t, "dir/noname.cbl", text, scanOptions(nil, nil))
	f := Build(sc, nil)

	assert.Contains(t, f.Callables, Symbol{Name: "noname", Line: 0})
}

func TestRecorder_FeedsGlobalCache(t *testing.T) {
	cache := NewGlobalCache()
	rec := NewRecorder(cache, false)
	sc := scan(t, "src/payroll.cbl", payroll, scanOptions(empRec, rec))

	table := rec.Table()
	require.NotNil(t, table)
	assert.Contains(t, table.VariableSymbols, "ws-total")
	assert.Contains(t, table.LabelSymbols, "main-para")

	// PAYROLL is named after its file, so it is that file's default callable
	assert.Equal(t, []FileSymbol{{File: "src/payroll.cbl"}}, cache.Callables("payroll"))
	assert.Equal(t, []string{"src/payroll.cbl"}, cache.Dependents("copy/EMPREC.cpy"))
	assert.Contains(t, cache.Records().Copybooks, "EMPREC,src/payroll.cbl")

	mtime, ok := cache.FileModTime("src/payroll.cbl")
	require.True(t, ok)
	assert.Equal(t, sc.ModTime, mtime)
}

func TestRecorder_RescanReplacesPreviousSymbols(t *testing.T) {
	cache := NewGlobalCache()
	scan(t, "src/payroll.cbl", payroll, scanOptions(empRec, NewRecorder(cache, true)))
	require.NotEmpty(t, cache.Callables("payroll"))

	renamed := strings.Replace(payroll, "PROGRAM-ID. PAYROLL.", "PROGRAM-ID. WAGES.  ", 1)
	rec := NewRecorder(cache, true)
	scan(t, "src/payroll.cbl", renamed, scanOptions(nil, rec))

	assert.Empty(t, cache.Callables("payroll"))
	assert.Len(t, cache.Callables("wages"), 1)
	assert.Empty(t, cache.Dependents("copy/EMPREC.cpy"))
	assert.Nil(t, rec.Table(), "table is projected later when copybooks are parsed for references")
}

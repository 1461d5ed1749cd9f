package symbols

import (
	"cobolscan/internal/engine/scanner"
)

// Symbol is a definition site within one file.
type Symbol struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// SymbolTable is the flattened per-file view of a scan: data names and
// labels keyed by lowercase name.
type SymbolTable struct {
	Filename        string            `json:"filename"`
	ModTime         int64             `json:"mtime"`
	VariableSymbols map[string]Symbol `json:"variables"`
	LabelSymbols    map[string]Symbol `json:"labels"`
}

func NewSymbolTable(filename string, modTime int64) *SymbolTable {
	return &SymbolTable{
		Filename:        filename,
		ModTime:         modTime,
		VariableSymbols: make(map[string]Symbol),
		LabelSymbols:    make(map[string]Symbol),
	}
}

// Add records tok when it defines a data name or a label. A later
// definition of the same name replaces the earlier line.
func (t *SymbolTable) Add(tok *scanner.Token) {
	if tok == nil || tok.IgnoreInOutlineView {
		return
	}
	switch tok.Style {
	case scanner.StyleUnion, scanner.StyleConstant, scanner.StyleConditionName, scanner.StyleVariable:
		t.VariableSymbols[tok.NameLower] = Symbol{Name: tok.Name, Line: tok.StartLine}
	case scanner.StyleParagraph, scanner.StyleSection:
		t.LabelSymbols[tok.NameLower] = Symbol{Name: tok.Name, Line: tok.StartLine}
	}
}

// Project walks the ordered tokens of a finished scan once.
func Project(sc *scanner.Scanner) *SymbolTable {
	t := NewSymbolTable(sc.Filename, sc.ModTime)
	for _, tok := range sc.Tokens() {
		t.Add(tok)
	}
	return t
}

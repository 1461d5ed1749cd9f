package symbols

import (
	"sort"
	"strings"

	"cobolscan/internal/engine/scanner"
)

// Reference kinds stored with a FileSymbols.
const (
	RefTarget   = "target"
	RefVariable = "variable"
)

// Reference is one occurrence of a name recorded during a scan.
type Reference struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
	Style  string `json:"style"`
	Reason string `json:"reason,omitempty"`
}

// TypeSymbol is a CLASS-ID, INTERFACE-ID or ENUM-ID definition.
type TypeSymbol struct {
	Kind TypeKind `json:"kind"`
	Name string   `json:"name"`
	Line int      `json:"line"`
}

// CopybookDep is a copybook a file was scanned with.
type CopybookDep struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mtime"`
}

// FileSymbols is everything persisted for one scanned source file.
type FileSymbols struct {
	Path        string               `json:"path"`
	ModTime     int64                `json:"mtime"`
	Format      string               `json:"format"`
	ProgramID   string               `json:"program_id,omitempty"`
	Aborted     bool                 `json:"aborted,omitempty"`
	Table       *SymbolTable         `json:"table"`
	Callables   []Symbol             `json:"callables,omitempty"`
	EntryPoints []Symbol             `json:"entry_points,omitempty"`
	Types       []TypeSymbol         `json:"types,omitempty"`
	Copybooks   []CopybookDep        `json:"copybooks,omitempty"`
	References  []Reference          `json:"references,omitempty"`
	Diagnostics []scanner.Diagnostic `json:"diagnostics,omitempty"`
	// Included holds data names and labels defined in the file's copybooks.
	// They are left out of the Table, which mirrors the outline.
	Included []SymbolRecord `json:"included,omitempty"`
}

// CopybookPaths returns the resolved paths of the file's copybooks.
func (f *FileSymbols) CopybookPaths() []string {
	out := make([]string, 0, len(f.Copybooks))
	for _, c := range f.Copybooks {
		out = append(out, c.Path)
	}
	return out
}

// Definitions flattens f into one record per (kind, name, file). A repeated
// name keeps the last line seen. Copybook definitions follow the file's own
// and carry the copybook path.
func (f *FileSymbols) Definitions() []SymbolRecord {
	dedup := make(map[string]int)
	var out []SymbolRecord
	addIn := func(file, kind, name string, line int) {
		if name == "" {
			return
		}
		key := kind + "\x00" + strings.ToLower(name) + "\x00" + file
		if i, ok := dedup[key]; ok {
			out[i].Line = line
			return
		}
		dedup[key] = len(out)
		out = append(out, SymbolRecord{Name: name, Kind: kind, File: file, Line: line})
	}
	add := func(kind, name string, line int) { addIn(f.Path, kind, name, line) }

	if f.Table != nil {
		for _, sym := range f.Table.VariableSymbols {
			add(KindVariable, sym.Name, sym.Line)
		}
		for _, sym := range f.Table.LabelSymbols {
			add(KindLabel, sym.Name, sym.Line)
		}
	}
	for _, sym := range f.Callables {
		add(KindCallable, sym.Name, sym.Line)
	}
	for _, sym := range f.EntryPoints {
		add(KindEntry, sym.Name, sym.Line)
	}
	for _, t := range f.Types {
		kind := KindClass
		switch t.Kind {
		case TypeInterface:
			kind = KindInterface
		case TypeEnum:
			kind = KindEnum
		}
		add(kind, t.Name, t.Line)
	}
	for _, rec := range f.Included {
		addIn(rec.File, rec.Kind, rec.Name, rec.Line)
	}
	return out
}

// Build assembles the FileSymbols of a finished scan. table may be nil, in
// which case it is projected from the token stream.
func Build(sc *scanner.Scanner, table *SymbolTable) *FileSymbols {
	if table == nil {
		table = Project(sc)
	}
	refs := sc.References()
	f := &FileSymbols{
		Path:        sc.Filename,
		ModTime:     sc.ModTime,
		Format:      sc.Format.String(),
		ProgramID:   sc.ProgramID,
		Aborted:     sc.ScanAborted,
		Table:       table,
		Diagnostics: sc.Diagnostics(),
	}

	for _, tok := range sc.Tokens() {
		if tok.IgnoreInOutlineView && tok.Style != scanner.StyleProgramID {
			if rec, ok := includedDefinition(tok); ok {
				f.Included = append(f.Included, rec)
			}
			continue
		}
		switch tok.Style {
		case scanner.StyleProgramID:
			f.Callables = append(f.Callables, Symbol{Name: tok.Name, Line: tok.StartLine})
		case scanner.StyleEntryPoint:
			f.EntryPoints = append(f.EntryPoints, Symbol{Name: tok.Name, Line: tok.StartLine})
		case scanner.StyleClassID:
			f.Types = append(f.Types, TypeSymbol{Kind: TypeClass, Name: tok.Name, Line: tok.StartLine})
		case scanner.StyleInterfaceID:
			f.Types = append(f.Types, TypeSymbol{Kind: TypeInterface, Name: tok.Name, Line: tok.StartLine})
		case scanner.StyleEnumID:
			f.Types = append(f.Types, TypeSymbol{Kind: TypeEnum, Name: tok.Name, Line: tok.StartLine})
		}
	}
	for name, target := range sc.CallTargets {
		if tok := sc.Token(target.Token); tok != nil && tok.Style == scanner.StyleImplicitProgramID {
			f.Callables = append(f.Callables, Symbol{Name: name, Line: 0})
		}
	}

	for path, uses := range refs.CopyBooksUsed {
		dep := CopybookDep{Path: path}
		for _, u := range uses {
			if u.Info != nil && u.Info.FileModTime != 0 {
				dep.ModTime = u.Info.FileModTime
				break
			}
		}
		f.Copybooks = append(f.Copybooks, dep)
	}
	sort.Slice(f.Copybooks, func(i, j int) bool { return f.Copybooks[i].Path < f.Copybooks[j].Path })

	f.References = append(f.References, references(refs, refs.TargetReferences, RefTarget)...)
	f.References = append(f.References, references(refs, refs.ConstantsOrVariablesReferences, RefVariable)...)
	return f
}

// includedDefinition reports a data name or label defined by a copybook.
func includedDefinition(tok *scanner.Token) (SymbolRecord, bool) {
	kind := ""
	switch tok.Style {
	case scanner.StyleUnion, scanner.StyleConstant, scanner.StyleConditionName, scanner.StyleVariable:
		kind = KindVariable
	case scanner.StyleParagraph, scanner.StyleSection:
		kind = KindLabel
	default:
		return SymbolRecord{}, false
	}
	if tok.Name == "" || tok.IsImplicit {
		return SymbolRecord{}, false
	}
	return SymbolRecord{Name: tok.Name, Kind: kind, File: tok.Filename, Line: tok.StartLine}, true
}

func references(refs *scanner.SharedSourceReferences, m map[string][]scanner.SourceReference, kind string) []Reference {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Reference
	for _, name := range names {
		for _, r := range m[name] {
			file := ""
			if r.FileID >= 0 && r.FileID < len(refs.Filenames) {
				file = refs.Filenames[r.FileID]
			}
			out = append(out, Reference{
				Name:   name,
				Kind:   kind,
				File:   file,
				Line:   r.Line,
				Column: r.Column,
				Length: r.Length,
				Style:  r.Style.String(),
				Reason: r.Reason,
			})
		}
	}
	return out
}

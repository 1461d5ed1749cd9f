package symbols

import (
	"cobolscan/internal/engine/scanner"
)

// Recorder feeds a top-level scan into a GlobalCache as tokens are
// produced. It is not safe for concurrent scans; use one per scan.
type Recorder struct {
	cache *GlobalCache
	// collectTable is false when copybooks are parsed for references, in
	// which case the symbol table is projected after the scan instead.
	collectTable bool

	file  string
	table *SymbolTable
}

var _ scanner.Events = (*Recorder)(nil)

func NewRecorder(cache *GlobalCache, parseCopybooksForReferences bool) *Recorder {
	return &Recorder{cache: cache, collectTable: !parseCopybooksForReferences}
}

// Start drops what the cache knew about the file before this scan.
func (r *Recorder) Start(sc *scanner.Scanner) {
	r.file = sc.Filename
	r.table = NewSymbolTable(sc.Filename, sc.ModTime)
	if r.cache == nil {
		return
	}
	if r.file != "" && sc.ModTime != 0 {
		r.cache.AddFile(r.file, sc.ModTime)
	}
	r.cache.RemoveFile(r.file)
}

func (r *Recorder) ProcessToken(_ *scanner.Scanner, tok *scanner.Token) {
	if r.table == nil || tok.IgnoreInOutlineView {
		return
	}
	if r.collectTable {
		r.table.Add(tok)
	}
	if r.cache == nil {
		return
	}
	switch tok.Style {
	case scanner.StyleCopyBook, scanner.StyleCopyBookInOrOf:
		r.cache.AddKnownCopybook(tok.Name, r.file)
	case scanner.StyleProgramID, scanner.StyleImplicitProgramID:
		r.cache.AddCallable(r.file, tok.Name, tok.StartLine)
	case scanner.StyleEntryPoint:
		r.cache.AddEntryPoint(r.file, tok.Name, tok.StartLine)
	case scanner.StyleClassID:
		r.cache.AddType(TypeClass, r.file, tok.Name, tok.StartLine)
	case scanner.StyleInterfaceID:
		r.cache.AddType(TypeInterface, r.file, tok.Name, tok.StartLine)
	case scanner.StyleEnumID:
		r.cache.AddType(TypeEnum, r.file, tok.Name, tok.StartLine)
	}
}

func (r *Recorder) Finish(sc *scanner.Scanner) {
	if r.cache == nil {
		return
	}
	deps := make([]string, 0, len(sc.References().CopyBooksUsed))
	for path := range sc.References().CopyBooksUsed {
		deps = append(deps, path)
	}
	r.cache.SetDependencies(r.file, deps)
}

// Table returns the symbol table gathered during the scan, or nil when
// it was left to Project.
func (r *Recorder) Table() *SymbolTable {
	if !r.collectTable {
		return nil
	}
	return r.table
}

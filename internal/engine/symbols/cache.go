package symbols

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TypeKind is the category letter used for OO type records.
type TypeKind string

const (
	TypeClass     TypeKind = "T"
	TypeInterface TypeKind = "I"
	TypeEnum      TypeKind = "E"
)

// FileSymbol is one occurrence of a workspace-wide name.
type FileSymbol struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

var callableLiteral = regexp.MustCompile(`^([a-zA-Z0-9_-]*[a-zA-Z0-9]|([#]?[0-9a-zA-Z]+[a-zA-Z0-9_-]*[a-zA-Z0-9]))$`)

// GlobalCache holds the workspace-wide symbol tables. Every update for a
// file replaces what was previously recorded for it.
type GlobalCache struct {
	mu sync.RWMutex

	// defaultCallables maps a program named after its file to that file.
	defaultCallables map[string]string
	callables        map[string][]FileSymbol
	entryPoints      map[string][]FileSymbol
	types            map[TypeKind]map[string][]FileSymbol

	// knownCopybooks is keyed by "copybook,file".
	knownCopybooks map[string]string
	// dependents maps a resolved copybook path to the files including it.
	dependents map[string]map[string]struct{}
	files      map[string]int64

	dirty bool
}

func NewGlobalCache() *GlobalCache {
	return &GlobalCache{
		defaultCallables: make(map[string]string),
		callables:        make(map[string][]FileSymbol),
		entryPoints:      make(map[string][]FileSymbol),
		types: map[TypeKind]map[string][]FileSymbol{
			TypeClass:     {},
			TypeInterface: {},
			TypeEnum:      {},
		},
		knownCopybooks: make(map[string]string),
		dependents:     make(map[string]map[string]struct{}),
		files:          make(map[string]int64),
	}
}

// AddFile records the timestamp of a scanned source file.
func (c *GlobalCache) AddFile(file string, modTime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.files[file] != modTime {
		c.files[file] = modTime
		c.dirty = true
	}
}

// FileModTime returns the recorded timestamp of file.
func (c *GlobalCache) FileModTime(file string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.files[file]
	return t, ok
}

// Files returns the recorded source files in sorted order.
func (c *GlobalCache) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.files))
	for f := range c.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// RemoveFile drops every symbol recorded for file. The file timestamp is
// kept; use ForgetFile when the file itself is gone.
func (c *GlobalCache) RemoveFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeFileLocked(file)
}

// ForgetFile removes file and its timestamp.
func (c *GlobalCache) ForgetFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeFileLocked(file)
	if _, ok := c.files[file]; ok {
		delete(c.files, file)
		c.dirty = true
	}
}

func (c *GlobalCache) removeFileLocked(file string) {
	removeFrom(c.callables, file)
	removeFrom(c.entryPoints, file)
	for _, m := range c.types {
		removeFrom(m, file)
	}
	for name, f := range c.defaultCallables {
		if f == file {
			delete(c.defaultCallables, name)
		}
	}
	for key := range c.knownCopybooks {
		if _, in, ok := strings.Cut(key, ","); ok && in == file {
			delete(c.knownCopybooks, key)
		}
	}
	for path, files := range c.dependents {
		delete(files, file)
		if len(files) == 0 {
			delete(c.dependents, path)
		}
	}
	c.dirty = true
}

func removeFrom(m map[string][]FileSymbol, file string) {
	for name, list := range m {
		kept := list[:0]
		for _, s := range list {
			if s.File != file {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(m, name)
		} else {
			m[name] = kept
		}
	}
}

// add records name in file. An existing entry for the same file has its
// line updated instead of gaining a duplicate.
func (c *GlobalCache) add(m map[string][]FileSymbol, file, name string, line int) {
	key := strings.ToLower(name)
	list := m[key]
	var same []int
	for i, s := range list {
		if s.File == file {
			same = append(same, i)
		}
	}
	switch len(same) {
	case 0:
		list = append(list, FileSymbol{File: file, Line: line})
	case 1:
		list[same[0]].Line = line
	default:
		for _, i := range same {
			if list[i].Line != 1 {
				list[i].Line = line
				break
			}
		}
	}
	m[key] = list
	c.dirty = true
}

// AddCallable records a program id. A program named after its own file is
// kept as that file's default callable instead. Other programs in the same
// file do not displace it; RemoveFile clears both.
func (c *GlobalCache) AddCallable(file, name string, line int) {
	if file == "" || name == "" || !callableLiteral.MatchString(name) {
		return
	}
	base := filepath.Base(file)
	defaultName := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.ToLower(name) == defaultName {
		c.defaultCallables[defaultName] = file
		c.dirty = true
		return
	}
	c.add(c.callables, file, name, line)
}

func (c *GlobalCache) AddEntryPoint(file, name string, line int) {
	if file == "" || name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(c.entryPoints, file, name, line)
}

func (c *GlobalCache) AddType(kind TypeKind, file, name string, line int) {
	if file == "" || name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.types[kind]
	if !ok {
		return
	}
	c.add(m, file, name, line)
}

// AddKnownCopybook records that file includes copybook, as written.
func (c *GlobalCache) AddKnownCopybook(copybook, file string) {
	key := copybook + "," + file
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.knownCopybooks[key]; !ok {
		c.knownCopybooks[key] = copybook
		c.dirty = true
	}
}

// SetDependencies replaces the resolved copybook paths file depends on.
func (c *GlobalCache) SetDependencies(file string, copybooks []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, files := range c.dependents {
		delete(files, file)
		if len(files) == 0 {
			delete(c.dependents, path)
		}
	}
	for _, path := range copybooks {
		files, ok := c.dependents[path]
		if !ok {
			files = make(map[string]struct{})
			c.dependents[path] = files
		}
		files[file] = struct{}{}
	}
}

// Dependents returns the files that include the copybook at path.
func (c *GlobalCache) Dependents(path string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := c.dependents[path]
	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Callables returns where name is defined as a program. The default
// callable of a file is reported at line 0.
func (c *GlobalCache) Callables(name string) []FileSymbol {
	key := strings.ToLower(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]FileSymbol(nil), c.callables[key]...)
	if file, ok := c.defaultCallables[key]; ok {
		out = append(out, FileSymbol{File: file})
	}
	return out
}

func (c *GlobalCache) EntryPoints(name string) []FileSymbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FileSymbol(nil), c.entryPoints[strings.ToLower(name)]...)
}

func (c *GlobalCache) Types(kind TypeKind, name string) []FileSymbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FileSymbol(nil), c.types[kind][strings.ToLower(name)]...)
}

// Lookup returns every callable, entry point and type named name.
func (c *GlobalCache) Lookup(name string) []FileSymbol {
	out := c.Callables(name)
	out = append(out, c.EntryPoints(name)...)
	for _, kind := range []TypeKind{TypeClass, TypeInterface, TypeEnum} {
		out = append(out, c.Types(kind, name)...)
	}
	return out
}

// IsDirty reports whether the cache changed since the last ClearDirty.
func (c *GlobalCache) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

func (c *GlobalCache) ClearDirty() {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
}

// Restore replays a persisted scan of f.Path into the cache, replacing what
// was recorded for the file. Known copybook names are not persisted and are
// left empty until the file is scanned again.
func (c *GlobalCache) Restore(f *FileSymbols) {
	if f == nil || f.Path == "" {
		return
	}
	c.AddFile(f.Path, f.ModTime)
	c.RemoveFile(f.Path)
	for _, s := range f.Callables {
		c.AddCallable(f.Path, s.Name, s.Line)
	}
	for _, s := range f.EntryPoints {
		c.AddEntryPoint(f.Path, s.Name, s.Line)
	}
	for _, t := range f.Types {
		c.AddType(t.Kind, f.Path, t.Name, t.Line)
	}
	c.SetDependencies(f.Path, f.CopybookPaths())
}

package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	cerrors "cobolscan/internal/core/errors"
)

// LineSource gives the scanner line access to one document.
type LineSource interface {
	LineCount() int
	// Line returns the text of line index. With raw false an updated line
	// set through SetUpdatedLine is returned in preference.
	Line(index int, raw bool) (string, bool)
	Filename() string
	LanguageID() string
	ModTime() int64
	SetUpdatedLine(index int, text string)
	UpdatedLine(index int) (string, bool)
}

// FileSource is an in-memory LineSource, usually loaded from disk.
type FileSource struct {
	filename   string
	languageID string
	modTime    int64
	lines      []string

	mu      sync.Mutex
	updated map[int]string
}

// NewMemorySource builds a source from text. Lines split on \n or \r\n.
func NewMemorySource(filename, text string, modTime int64) *FileSource {
	return &FileSource{
		filename:   filename,
		languageID: "cobol",
		modTime:    modTime,
		lines:      splitLines(text),
		updated:    make(map[int]string),
	}
}

// LoadFile reads a source from disk. Lines that do not match filter are
// blanked when filter is non-nil.
func LoadFile(path string, filter *regexp.Regexp) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeNotFound, "stat source"), cerrors.CtxPath, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "read source"), cerrors.CtxPath, path)
	}
	return NewFilteredSource(filepath.Clean(path), string(data), info.ModTime().UnixNano(), filter), nil
}

// NewFilteredSource is NewMemorySource with lines not matching filter
// blanked. A nil filter keeps every line.
func NewFilteredSource(filename, text string, modTime int64, filter *regexp.Regexp) *FileSource {
	src := NewMemorySource(filename, text, modTime)
	if filter != nil {
		for i, l := range src.lines {
			if !filter.MatchString(l) {
				src.lines[i] = ""
			}
		}
	}
	return src
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// WithLanguageID sets the dialect used for keyword lookups.
func (f *FileSource) WithLanguageID(id string) *FileSource {
	if id != "" {
		f.languageID = id
	}
	return f
}

func (f *FileSource) LineCount() int { return len(f.lines) }

func (f *FileSource) Line(index int, raw bool) (string, bool) {
	if index < 0 || index >= len(f.lines) {
		return "", false
	}
	if !raw {
		if l, ok := f.UpdatedLine(index); ok {
			return l, true
		}
	}
	return f.lines[index], true
}

func (f *FileSource) Filename() string   { return f.filename }
func (f *FileSource) LanguageID() string { return f.languageID }
func (f *FileSource) ModTime() int64     { return f.modTime }

func (f *FileSource) SetUpdatedLine(index int, text string) {
	f.mu.Lock()
	f.updated[index] = text
	f.mu.Unlock()
}

func (f *FileSource) UpdatedLine(index int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.updated[index]
	return l, ok
}

// Text returns the raw text between two positions, joined with \n.
func Text(src LineSource, startLine, startColumn, endLine, endColumn int) string {
	first, _ := src.Line(startLine, true)
	var b strings.Builder
	b.WriteString(safeSlice(first, startColumn, len(first)))
	for ln := startLine + 1; ln <= endLine; ln++ {
		l, _ := src.Line(ln, true)
		b.WriteByte('\n')
		if ln == endLine {
			b.WriteString(safeSlice(l, 0, endColumn))
		} else {
			b.WriteString(l)
		}
	}
	return b.String()
}

func safeSlice(s string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(s) {
		to = len(s)
	}
	if from >= to {
		return ""
	}
	return s[from:to]
}

// Comment is a comment found while reading a line.
type Comment struct {
	Text     string
	Line     int
	StartPos int
	Format   Format
}

var areaAPattern = regexp.MustCompile(`^[0-9 ]{6}`)

// sourceReader strips comments and margins from lines according to the
// detected format and reports each comment to onComment.
type sourceReader struct {
	src LineSource

	format           Format
	dumpAreaA        bool
	dumpAreaBOnwards bool

	commentCount int
	quiet        bool
	onComment    func(Comment)
}

func newSourceReader(src LineSource, onComment func(Comment)) *sourceReader {
	return &sourceReader{src: src, onComment: onComment}
}

func (r *sourceReader) setFormat(f Format) {
	r.format = f
	switch f {
	case FormatFixed:
		r.dumpAreaA = true
		r.dumpAreaBOnwards = true
	case FormatFree, FormatVariable, FormatTerminal:
		r.dumpAreaA = false
		r.dumpAreaBOnwards = false
	}
}

func (r *sourceReader) emit(line string, lineNumber, startPos int, format Format) {
	r.commentCount++
	if r.quiet || r.onComment == nil {
		return
	}
	r.onComment(Comment{Text: line, Line: lineNumber, StartPos: startPos, Format: format})
}

// line returns the code part of a line. Comment-only lines come back empty.
// Lines are always read raw: REPLACE output of an earlier scan must not be
// replaced again.
func (r *sourceReader) line(n int) (string, bool) {
	line, ok := r.src.Line(n, true)
	if !ok {
		return "", false
	}

	if start := strings.Index(line, "*>"); start != -1 && start != 6 {
		r.emit(line, n, start, FormatVariable)
		line = line[:start]
	}

	if len(line) > 0 && (line[0] == '*' || (len(line) >= 7 && (line[6] == '*' || line[6] == '/'))) {
		if line[0] == '*' {
			r.emit(line, n, 0, FormatVariable)
		} else {
			r.emit(line, n, 6, FormatFixed)
		}
		return "", true
	}

	if r.format == FormatTerminal && (strings.HasPrefix(line, `\D`) || strings.HasPrefix(line, "|")) {
		r.emit(line, n, 0, FormatTerminal)
		return "", true
	}

	if r.dumpAreaA && areaAPattern.MatchString(line) {
		line = "      " + line[6:]
	}
	if r.dumpAreaBOnwards && len(line) >= 73 {
		line = line[:72]
	}
	return line, true
}

// tabExpanded returns a raw line with tabs expanded to 4 columns.
func tabExpanded(src LineSource, n int) (string, bool) {
	raw, ok := src.Line(n, true)
	if !ok || raw == "" {
		return raw, ok
	}
	if !strings.Contains(raw, "\t") {
		return raw, true
	}
	var b strings.Builder
	col := 0
	for _, c := range raw {
		if c == '\t' {
			for {
				b.WriteByte(' ')
				col++
				if col%4 == 0 {
					break
				}
			}
			continue
		}
		b.WriteRune(c)
		col++
	}
	return b.String(), true
}

func (f *FileSource) String() string {
	return fmt.Sprintf("FileSource(%s, %d lines)", f.filename, len(f.lines))
}

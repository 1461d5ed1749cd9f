package symbols

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	cerrors "cobolscan/internal/core/errors"
)

// Records is the persisted form of a GlobalCache: comma-separated fields,
// one record per entry. Embedded commas are not escaped.
type Records struct {
	Callables   []string
	EntryPoints []string
	Types       []string
	Files       []string
	Copybooks   []string
}

const (
	sectionCallables   = "[callables]"
	sectionEntryPoints = "[entrypoints]"
	sectionTypes       = "[types]"
	sectionFiles       = "[files]"
	sectionCopybooks   = "[copybooks]"
)

// Records snapshots the cache. Output is sorted so exports are stable.
func (c *GlobalCache) Records() Records {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var r Records
	for name, list := range c.callables {
		for _, s := range list {
			r.Callables = append(r.Callables, fmt.Sprintf("%s,%s,%d", name, s.File, s.Line))
		}
	}
	for name, file := range c.defaultCallables {
		r.Callables = append(r.Callables, name+","+file)
	}
	for name, list := range c.entryPoints {
		for _, s := range list {
			r.EntryPoints = append(r.EntryPoints, fmt.Sprintf("%s,%s,%d", name, s.File, s.Line))
		}
	}
	for kind, m := range c.types {
		for name, list := range m {
			for _, s := range list {
				r.Types = append(r.Types, fmt.Sprintf("%s,%s,%s,%d", kind, name, s.File, s.Line))
			}
		}
	}
	for file, mtime := range c.files {
		r.Files = append(r.Files, fmt.Sprintf("%d,%s", mtime, file))
	}
	for key := range c.knownCopybooks {
		r.Copybooks = append(r.Copybooks, key)
	}

	for _, list := range []*[]string{&r.Callables, &r.EntryPoints, &r.Types, &r.Files, &r.Copybooks} {
		sort.Strings(*list)
	}
	return r
}

// FileCheck reports whether file still exists with the recorded mtime.
type FileCheck func(file string, modTime int64) bool

// LoadRecords merges r into the cache. Malformed records are skipped. When
// check is set, files that changed since the export lose their programs,
// entry points and types, and their timestamp is not restored. Their known
// copybooks are kept so a rescan still finds them.
func (c *GlobalCache) LoadRecords(r Records, check FileCheck) {
	for _, rec := range r.Callables {
		parts := strings.Split(rec, ",")
		switch len(parts) {
		case 2:
			c.AddCallable(parts[1], parts[0], 0)
		case 3:
			if line, err := strconv.Atoi(parts[2]); err == nil {
				c.AddCallable(parts[1], parts[0], line)
			}
		}
	}
	for _, rec := range r.EntryPoints {
		parts := strings.Split(rec, ",")
		if len(parts) != 3 {
			continue
		}
		if line, err := strconv.Atoi(parts[2]); err == nil {
			c.AddEntryPoint(parts[1], parts[0], line)
		}
	}
	for _, rec := range r.Types {
		parts := strings.Split(rec, ",")
		if len(parts) != 4 {
			continue
		}
		line, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}
		kind := TypeClass
		switch parts[0] {
		case "I":
			kind = TypeInterface
		case "E":
			kind = TypeEnum
		}
		c.AddType(kind, parts[2], parts[1], line)
	}
	for _, rec := range r.Copybooks {
		if copybook, file, ok := strings.Cut(rec, ","); ok && !strings.Contains(file, ",") {
			c.AddKnownCopybook(copybook, file)
		}
	}
	for _, rec := range r.Files {
		ms, file, ok := strings.Cut(rec, ",")
		if !ok {
			continue
		}
		mtime, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			continue
		}
		if check != nil && !check(file, mtime) {
			c.mu.Lock()
			removeFrom(c.callables, file)
			for name, f := range c.defaultCallables {
				if f == file {
					delete(c.defaultCallables, name)
				}
			}
			removeFrom(c.entryPoints, file)
			for _, m := range c.types {
				removeFrom(m, file)
			}
			c.dirty = true
			c.mu.Unlock()
			continue
		}
		c.AddFile(file, mtime)
	}
}

// WriteRecords writes r as sections of delimited lines.
func WriteRecords(w io.Writer, r Records) error {
	bw := bufio.NewWriter(w)
	sections := []struct {
		header string
		lines  []string
	}{
		{sectionCallables, r.Callables},
		{sectionEntryPoints, r.EntryPoints},
		{sectionTypes, r.Types},
		{sectionFiles, r.Files},
		{sectionCopybooks, r.Copybooks},
	}
	for _, sec := range sections {
		if _, err := fmt.Fprintln(bw, sec.header); err != nil {
			return cerrors.Wrap(err, cerrors.CodeInternal, "write cache records")
		}
		for _, line := range sec.lines {
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return cerrors.Wrap(err, cerrors.CodeInternal, "write cache records")
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return cerrors.Wrap(err, cerrors.CodeInternal, "flush cache records")
	}
	return nil
}

// ReadRecords parses the output of WriteRecords.
func ReadRecords(rd io.Reader) (Records, error) {
	var r Records
	var current *[]string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch line {
		case sectionCallables:
			current = &r.Callables
		case sectionEntryPoints:
			current = &r.EntryPoints
		case sectionTypes:
			current = &r.Types
		case sectionFiles:
			current = &r.Files
		case sectionCopybooks:
			current = &r.Copybooks
		default:
			if current == nil {
				return r, cerrors.New(cerrors.CodeValidationError, "cache record outside of a section: "+line)
			}
			*current = append(*current, line)
		}
	}
	if err := sc.Err(); err != nil {
		return r, cerrors.Wrap(err, cerrors.CodeInternal, "read cache records")
	}
	return r, nil
}

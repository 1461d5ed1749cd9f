package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// FileDirnameVar is expanded to the directory of the source being scanned
// in per-file copybook directories.
const FileDirnameVar = "${fileDirname}"

// NormalizePatternPath cleans a path for glob matching: forward slashes,
// no leading "./", empty for the current directory.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// IsURL reports whether s is an http or https location.
func IsURL(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ExpandFileDirname substitutes FileDirnameVar in dir with the directory
// of sourceFilename.
func ExpandFileDirname(dir, sourceFilename string) string {
	if !strings.Contains(dir, FileDirnameVar) {
		return dir
	}
	return strings.ReplaceAll(dir, FileDirnameVar, filepath.Dir(sourceFilename))
}

// HasExtension reports whether the base name of name carries a dot.
func HasExtension(name string) bool {
	return strings.Contains(filepath.Base(name), ".")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file
// through a temporary sibling so readers never see a partial export.
func WriteFileWithDirs(name string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(name)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}

// HeapAllocMB returns the current heap allocation in MB.
func HeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}

package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cobolscan/internal/shared/util"

	"github.com/gobwas/glob"
)

func CompileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// MatchesAny reports whether the base name or the slash form of path
// matches one of globs.
func MatchesAny(globs []glob.Glob, path string) bool {
	base := filepath.Base(path)
	normalized := util.NormalizePatternPath(path)
	for _, g := range globs {
		if g.Match(base) || g.Match(normalized) {
			return true
		}
	}
	return false
}

func UniqueScanRoots(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		normalized := filepath.Clean(p)
		if abs, err := filepath.Abs(normalized); err == nil {
			normalized = filepath.Clean(abs)
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		roots = append(roots, normalized)
	}
	sort.Strings(roots)
	return roots
}

// ExtensionSet lowercases exts and gives each a leading dot.
func ExtensionSet(exts ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, list := range exts {
		for _, ext := range list {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			out[ext] = true
		}
	}
	return out
}

// FindContainingWatchPath returns the absolute watch root holding path.
func FindContainingWatchPath(path string, watchPaths []string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve file path %q: %w", path, err)
	}

	for _, watchPath := range watchPaths {
		absWatchPath, err := filepath.Abs(watchPath)
		if err != nil {
			return "", fmt.Errorf("resolve watch path %q: %w", watchPath, err)
		}

		rel, err := filepath.Rel(absWatchPath, absPath)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))) {
			return absWatchPath, nil
		}
	}

	return "", fmt.Errorf("file %q is not under any configured watch path", path)
}
